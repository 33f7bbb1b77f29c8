package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession  = fmt.Errorf("%w: unknown session", domain.ErrUnauthorized)
	ErrNotAttached     = fmt.Errorf("%w: identity not verified", domain.ErrUnauthorized)
	ErrAlreadyAttached = errors.New("identity already attached")
)

type sessionEntry struct {
	Session  core.MemberSession
	Identity *domain.Identity
	Rooms    map[domain.RoomID]struct{}
	Leaving  bool
	Cancel   context.CancelFunc
}

// Registry maps each live connection to its identity and to the groups it
// participates in. All group mutations happen under mu so a group is never
// released while another session is being added to it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	groups   core.GroupManager
}

func NewRegistry(groups core.GroupManager) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		groups:   groups,
	}
}

// Bind records a connection that has not been attached to an identity yet.
func (r *Registry) Bind(sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.SID()] = &sessionEntry{
		Session: sess,
		Rooms:   make(map[domain.RoomID]struct{}),
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sess.SID())).Msg("bound session")
}

// Attach sets the identity of sid. It succeeds exactly once per session.
func (r *Registry) Attach(sid core.SessionID, id domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Leaving {
		return ErrUnknownSession
	}
	if e.Identity != nil {
		return ErrAlreadyAttached
	}
	e.Identity = &id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(id.ID)).Msg("attached identity")
	return nil
}

// Identity returns the verified identity of sid. The error wraps
// domain.ErrUnauthorized when the session is unknown or unverified.
func (r *Registry) Identity(sid core.SessionID) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Leaving {
		return domain.Identity{}, ErrUnknownSession
	}
	if e.Identity == nil {
		return domain.Identity{}, ErrNotAttached
	}
	return *e.Identity, nil
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok && !e.Leaving {
		return e.Session, true
	}
	return nil, false
}

// JoinGroup adds sid to the group of room. joined is false when sid was
// already there; that is still a success.
func (r *Registry) JoinGroup(sid core.SessionID, room domain.RoomID) (joined bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.attachedLocked(sid)
	if err != nil {
		return false, err
	}
	if _, ok := e.Rooms[room]; ok {
		return false, nil
	}
	r.groups.GetOrCreate(room).Add(e.Session)
	e.Rooms[room] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("joined group")
	return true, nil
}

// LeaveGroup removes sid from the group of room. left is false when sid was
// not there; that is still a success.
func (r *Registry) LeaveGroup(sid core.SessionID, room domain.RoomID) (left bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.attachedLocked(sid)
	if err != nil {
		return false, err
	}
	if _, ok := e.Rooms[room]; !ok {
		return false, nil
	}
	r.removeFromGroupLocked(e, room)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("left group")
	return true, nil
}

func (r *Registry) InGroup(sid core.SessionID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, in := e.Rooms[room]
	return in
}

// Groups returns the sorted rooms whose group contains sid.
func (r *Registry) Groups(sid core.SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	out := make([]domain.RoomID, 0, len(e.Rooms))
	for room := range e.Rooms {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

// Broadcast delivers data to every session in the group of room except
// exclude. An unknown room reaches nobody.
func (r *Registry) Broadcast(room domain.RoomID, data core.Frame, exclude core.SessionID) (core.Group, core.PublishResult) {
	g, ok := r.groups.Get(room)
	if !ok {
		return nil, core.PublishResult{}
	}
	return g, g.Broadcast(exclude, data)
}

// BroadcastAll delivers data to every live session except exclude,
// regardless of groups or identity.
func (r *Registry) BroadcastAll(data core.Frame, exclude core.SessionID) core.PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := core.PublishResult{}
	for sid, e := range r.sessions {
		if sid == exclude || e.Leaving {
			continue
		}
		if err := e.Session.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, e.Session)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.registry").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast all")
	return res
}

// MembersOfRoom lists the verified identities currently in the group of room.
func (r *Registry) MembersOfRoom(room domain.RoomID) []core.MemberDTO {
	g, ok := r.groups.Get(room)
	if !ok {
		return []core.MemberDTO{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberDTO, 0, g.Size())
	for _, ms := range g.Sessions() {
		e, ok := r.sessions[ms.SID()]
		if !ok || e.Identity == nil {
			continue
		}
		out = append(out, core.MemberDTO{ID: e.Identity.ID, Username: e.Identity.Username})
	}
	slices.SortFunc(out, func(a, b core.MemberDTO) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// Unbind drops sid from every group and forgets it. It returns the identity
// the session had, if any, and the rooms it was evicted from.
func (r *Registry) Unbind(sid core.SessionID) (*domain.Identity, []domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, nil
	}
	e.Leaving = true
	rooms := make([]domain.RoomID, 0, len(e.Rooms))
	for room := range e.Rooms {
		rooms = append(rooms, room)
		r.removeFromGroupLocked(e, room)
	}
	slices.Sort(rooms)
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("unbind session")
	return e.Identity, rooms
}

// Cancel stops the transport of sid; the adapter then runs disconnect.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) CancelAll() {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, c := range cancels {
		c()
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) attachedLocked(sid core.SessionID) (*sessionEntry, error) {
	e, ok := r.sessions[sid]
	if !ok || e.Leaving {
		return nil, ErrUnknownSession
	}
	if e.Identity == nil {
		return nil, ErrNotAttached
	}
	return e, nil
}

func (r *Registry) removeFromGroupLocked(e *sessionEntry, room domain.RoomID) {
	delete(e.Rooms, room)
	if g, ok := r.groups.Get(room); ok {
		g.Remove(e.Session.SID())
		r.groups.Release(room)
	}
}

// ActiveGroups lists rooms that currently have at least one live session.
func (r *Registry) ActiveGroups() []core.GroupInfo {
	return r.groups.List()
}
