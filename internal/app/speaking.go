package app

import (
	"slices"
	"sync"

	"github.com/dkeye/talkroom/internal/domain"
)

// SpeakingTracker keeps the per-room set of users currently speaking.
// It is pure bookkeeping and never emits events.
type SpeakingTracker struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]map[domain.UserID]struct{}
}

func NewSpeakingTracker() *SpeakingTracker {
	return &SpeakingTracker{rooms: make(map[domain.RoomID]map[domain.UserID]struct{})}
}

// Set marks user as speaking or silent in room and reports whether the
// state changed.
func (t *SpeakingTracker) Set(room domain.RoomID, user domain.UserID, speaking bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.rooms[room]
	_, was := set[user]
	if speaking == was {
		return false
	}
	if speaking {
		if set == nil {
			set = make(map[domain.UserID]struct{})
			t.rooms[room] = set
		}
		set[user] = struct{}{}
		return true
	}
	delete(set, user)
	if len(set) == 0 {
		delete(t.rooms, room)
	}
	return true
}

// ClearUser removes user from every room and returns the rooms where the
// user was marked speaking.
func (t *SpeakingTracker) ClearUser(user domain.UserID) []domain.RoomID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var cleared []domain.RoomID
	for room, set := range t.rooms {
		if _, ok := set[user]; !ok {
			continue
		}
		delete(set, user)
		if len(set) == 0 {
			delete(t.rooms, room)
		}
		cleared = append(cleared, room)
	}
	slices.Sort(cleared)
	return cleared
}

func (t *SpeakingTracker) IsSpeaking(room domain.RoomID, user domain.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rooms[room][user]
	return ok
}

// Speaking returns the sorted ids speaking in room.
func (t *SpeakingTracker) Speaking(room domain.RoomID) []domain.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.UserID, 0, len(t.rooms[room]))
	for u := range t.rooms[room] {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}
