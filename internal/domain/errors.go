package domain

import "errors"

var (
	ErrUnauthorized  = errors.New("Unauthorized")
	ErrForbidden     = errors.New("Not a member of this room")
	ErrRoomNotFound  = errors.New("Room not found")
	ErrRoomFull      = errors.New("Room is full")
	ErrAlreadyMember = errors.New("User is already a member of this room")
	ErrNotMember     = errors.New("User is not a member of this room")
	ErrBadPayload    = errors.New("bad payload")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnknownEvent  = errors.New("unknown event")
)

var public = []error{
	ErrUnauthorized,
	ErrForbidden,
	ErrRoomNotFound,
	ErrRoomFull,
	ErrAlreadyMember,
	ErrNotMember,
	ErrBadPayload,
	ErrRateLimited,
	ErrUnknownEvent,
}

// PublicMessage returns the client-facing text for err. Known kinds are
// reported by their sentinel message even when wrapped.
func PublicMessage(err error) string {
	for _, e := range public {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return err.Error()
}
