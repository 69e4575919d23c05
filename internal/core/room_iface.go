package core

import (
	"github.com/dkeye/Presence/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	// Room returns a copy of the room settings.
	Room() domain.Room
	// Update applies fn to the room settings under the room lock.
	Update(fn func(*domain.Room)) domain.Room
	MemberCount() int
	// MembersSnapshot lists members in join order.
	MembersSnapshot() []domain.Member
	SessionOf(user domain.UserID) (SessionID, bool)

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID) (domain.Member, bool)
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	Creator     domain.UserID   `json:"creator,omitempty"`
	IsPublic    bool            `json:"isPublic"`
	MemberCount int             `json:"members"`
}

type RoomManager interface {
	// Create registers room unless its id is taken.
	Create(room domain.Room) (RoomService, bool)
	// GetOrCreate returns the room with room.ID, registering room if absent.
	GetOrCreate(room domain.Room) RoomService
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	// DropIfEmpty removes the room when nobody is left in it.
	DropIfEmpty(id domain.RoomID) bool
	StopRoom(id domain.RoomID)
}
