package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Frame is one encoded text message.
type Frame []byte

// SignalConnection is a coordinator-side messaging endpoint.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
	// CloseWith tells the peer why the socket ends before closing it.
	CloseWith(code int, reason string)
}
