package core

import (
	"fmt"

	"github.com/dkeye/Presence/internal/domain"
)

// ConnectionError means the transport failed to open or dropped.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is an inbound frame that could not be parsed or violates the
// message schema. The frame is dropped; the session keeps running.
type ProtocolError struct {
	Type string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("protocol: %v", e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Type, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StateError is an event that references a member the roster does not know.
// It is benign: the roster is left unchanged.
type StateError struct {
	Type   string
	UserID domain.UserID
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s for unknown member %q", e.Type, e.UserID)
}
