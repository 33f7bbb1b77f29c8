package core

type SessionID string

// MemberSession binds a connection id to its transport endpoint.
// This is what a group stores and fans out to.
type MemberSession interface {
	SID() SessionID
	Signal() SignalConnection
}
