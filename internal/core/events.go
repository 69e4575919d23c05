package core

import "github.com/dkeye/Presence/internal/domain"

// Event is a decoded server-pushed presence notification.
type Event interface {
	EventType() string
}

// RoomJoined is the membership snapshot sent after a join announcement.
type RoomJoined struct {
	Members []domain.Member
}

type UserJoined struct {
	Member domain.Member
}

type UserLeft struct {
	UserID domain.UserID
}

// ServerError carries a coordinator "error" frame. It never touches the roster.
type ServerError struct {
	Message string
}

// RoomNotFound answers a join for a room the coordinator does not know.
type RoomNotFound struct {
	RoomID domain.RoomID
}

type Unknown struct {
	Type string
}

func (RoomJoined) EventType() string  { return TypeRoomJoined }
func (UserJoined) EventType() string  { return TypeUserJoined }
func (UserLeft) EventType() string    { return TypeUserLeft }
func (ServerError) EventType() string { return TypeError }
func (RoomNotFound) EventType() string { return TypeRoomNotFound }
func (u Unknown) EventType() string      { return u.Type }
