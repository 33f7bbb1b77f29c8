package core

import "github.com/dkeye/talkroom/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// Group is the set of live connections subscribed to one room's broadcasts.
// It is independent from the durable membership record and never touches
// transport resources beyond TrySend.
type Group interface {
	RoomID() domain.RoomID
	Size() int
	Has(sid SessionID) bool
	Sessions() []MemberSession

	// Add reports false when sid was already present.
	Add(ms MemberSession) bool
	// Remove reports false when sid was not present.
	Remove(sid SessionID) bool
	Broadcast(exclude SessionID, data Frame) PublishResult
}

type GroupInfo struct {
	RoomID      domain.RoomID `json:"roomId"`
	MemberCount int           `json:"client_count"`
}

type GroupManager interface {
	GetOrCreate(id domain.RoomID) Group
	Get(id domain.RoomID) (Group, bool)
	// Release drops the group if it has no sessions left.
	Release(id domain.RoomID)
	List() []GroupInfo
}
