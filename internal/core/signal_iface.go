package core

// Frame is an encoded outbound event.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues f without blocking. It fails when the connection is
	// closed or its outbound queue is full.
	TrySend(Frame) error
	Close()
}
