package core

import "github.com/dkeye/Presence/internal/domain"

type SessionID string

// MemberSession binds a room member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() domain.Member
	Signal() SignalConnection
}
