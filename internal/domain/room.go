package domain

import (
	"slices"
	"time"
)

const DefaultMaxMembers = 10

type RoomID string

// Room is the durable membership record. The store owns it; the relay only
// ever reads snapshots of it.
type Room struct {
	ID           RoomID    `json:"id"`
	Name         string    `json:"name"`
	Members      []UserID  `json:"members"`
	Admins       []UserID  `json:"admins"`
	MaxMembers   int       `json:"maxMembers"`
	IsActive     bool      `json:"isActive"`
	LastActivity time.Time `json:"lastActivity"`
}

func (r *Room) HasMember(id UserID) bool {
	return slices.Contains(r.Members, id)
}

func (r *Room) IsAdmin(id UserID) bool {
	return slices.Contains(r.Admins, id)
}

// IsFull reports whether one more member would exceed MaxMembers.
func (r *Room) IsFull() bool {
	return len(r.Members) >= r.MaxMembers
}

// Clone returns a copy that shares no slices with r.
func (r *Room) Clone() *Room {
	out := *r
	out.Members = slices.Clone(r.Members)
	out.Admins = slices.Clone(r.Admins)
	return &out
}
