// Package memory is an in-process MembershipStore and PresenceStore.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/talkroom/internal/domain"
)

type presence struct {
	Online   bool
	LastSeen time.Time
}

type MemStore struct {
	mx    *sync.Mutex
	db    map[domain.RoomID]*domain.Room
	users map[domain.UserID]presence
	now   func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		mx:    &sync.Mutex{},
		db:    make(map[domain.RoomID]*domain.Room),
		users: make(map[domain.UserID]presence),
		now:   time.Now,
	}
}

// PutRoom creates or replaces a room record. maxMembers <= 0 means
// domain.DefaultMaxMembers.
func (ms *MemStore) PutRoom(room domain.Room) *domain.Room {
	if room.MaxMembers <= 0 {
		room.MaxMembers = domain.DefaultMaxMembers
	}
	r := room.Clone()
	r.IsActive = true
	if r.LastActivity.IsZero() {
		r.LastActivity = ms.now()
	}
	ms.mx.Lock()
	defer ms.mx.Unlock()
	ms.db[r.ID] = r
	return r.Clone()
}

func (ms *MemStore) AddMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if room.HasMember(userID) {
		return nil, domain.ErrAlreadyMember
	}
	if room.IsFull() {
		return nil, domain.ErrRoomFull
	}
	room.Members = append(room.Members, userID)
	room.LastActivity = ms.now()
	return room.Clone(), nil
}

func (ms *MemStore) RemoveMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.HasMember(userID) {
		return nil, domain.ErrNotMember
	}
	room.Members = slices.DeleteFunc(room.Members, func(u domain.UserID) bool { return u == userID })
	room.Admins = slices.DeleteFunc(room.Admins, func(u domain.UserID) bool { return u == userID })
	room.LastActivity = ms.now()
	return room.Clone(), nil
}

func (ms *MemStore) Get(_ context.Context, roomID domain.RoomID) (*domain.Room, error) {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	room, ok := ms.db[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (ms *MemStore) SetOnline(_ context.Context, userID domain.UserID, online bool) error {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	ms.users[userID] = presence{Online: online, LastSeen: ms.now()}
	return nil
}

// Online reports the last recorded online flag and when it was set.
func (ms *MemStore) Online(userID domain.UserID) (bool, time.Time) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	p := ms.users[userID]
	return p.Online, p.LastSeen
}
