package domain

import (
	"errors"
	"strings"
)

const (
	MaxRoomIDLen   = 36
	MaxRoomNameLen = 64
)

var (
	ErrRoomIDEmpty     = errors.New("room id empty")
	ErrRoomIDTooLong   = errors.New("room id too long")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type (
	RoomName string
	RoomID   string
)

// Room is the coordinator's view of a room. Private rooms admit only joins
// carrying Password.
type Room struct {
	ID       RoomID
	Name     RoomName
	Creator  UserID
	IsPublic bool
	Password string
}

func (r Room) Admits(password string) bool {
	return r.IsPublic || r.Password == password
}

func ValidateRoomID(id RoomID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}

func ValidateRoomName(name RoomName) error {
	if len(name) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}
