package core

import (
	"context"

	"github.com/dkeye/talkroom/internal/domain"
)

//go:generate mockgen -source=store_iface.go -destination=mocks/store_mock.go -package=mocks

// MembershipStore is the durable room roster. Implementations serialize
// concurrent mutations of the same room.
type MembershipStore interface {
	// AddMember fails with domain.ErrAlreadyMember, domain.ErrRoomNotFound
	// or domain.ErrRoomFull. A failed call does not mutate the record.
	AddMember(ctx context.Context, room domain.RoomID, user domain.UserID) (*domain.Room, error)
	// RemoveMember drops user from members and admins. It fails with
	// domain.ErrNotMember or domain.ErrRoomNotFound.
	RemoveMember(ctx context.Context, room domain.RoomID, user domain.UserID) (*domain.Room, error)
	Get(ctx context.Context, room domain.RoomID) (*domain.Room, error)
}

// PresenceStore records the roster-wide online flag of a user.
type PresenceStore interface {
	SetOnline(ctx context.Context, user domain.UserID, online bool) error
}

// IdentityVerifier turns a bearer credential into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}
