package core

import (
	"sync"

	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// groupImpl is a threadsafe in-memory group.
// It never closes adapter-owned resources.
type groupImpl struct {
	room  domain.RoomID
	mu    sync.RWMutex
	bySID map[SessionID]MemberSession
}

func NewGroup(room domain.RoomID) Group {
	return &groupImpl{
		room:  room,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (g *groupImpl) RoomID() domain.RoomID { return g.room }

func (g *groupImpl) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.bySID)
}

func (g *groupImpl) Has(sid SessionID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.bySID[sid]
	return ok
}

func (g *groupImpl) Sessions() []MemberSession {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]MemberSession, 0, len(g.bySID))
	for _, ms := range g.bySID {
		out = append(out, ms)
	}
	return out
}

func (g *groupImpl) Add(ms MemberSession) bool {
	sid := ms.SID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bySID[sid]; ok {
		return false
	}
	g.bySID[sid] = ms
	log.Debug().Str("module", "core.group").Str("sid", string(sid)).Str("room", string(g.room)).Msg("session added")
	return true
}

func (g *groupImpl) Remove(sid SessionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.bySID[sid]; !ok {
		return false
	}
	delete(g.bySID, sid)
	log.Debug().Str("module", "core.group").Str("sid", string(sid)).Str("room", string(g.room)).Msg("session removed")
	return true
}

func (g *groupImpl) Broadcast(exclude SessionID, data Frame) PublishResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range g.bySID {
		if sid == exclude {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.group").Str("room", string(g.room)).Str("from", string(exclude)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
