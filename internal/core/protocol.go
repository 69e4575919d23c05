package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Presence/internal/domain"
)

// Frame types exchanged over the presence socket.
const (
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypePing       = "ping"
	TypeRoomJoined = "room_joined"
	TypeRoomLeft   = "room_left"
	TypeUserJoined = "user_joined"
	TypeUserLeft   = "user_left"
	TypePong       = "pong"
	TypeError      = "error"

	TypeCreateRoom   = "create_room"
	TypeRoomCreated  = "room_created"
	TypeRoomNotFound = "room_not_found"
)

// Reasons carried by coordinator error frames.
const (
	ReasonBadJSON          = "bad_json"
	ReasonBadPayload       = "bad_payload"
	ReasonUnknownType      = "unknown_type"
	ReasonRateLimited      = "rate_limited"
	ReasonIdentityMismatch = "identity_mismatch"
	ReasonNotInRoom        = "not_in_room"
	ReasonJoinFailed       = "join_failed"
	ReasonInvalidPassword  = "invalid_password"
	ReasonRoomExists       = "room_exists"
)

// CloseReplaced is the websocket close code sent to a session that another
// session of the same user took over.
const CloseReplaced = 4001

var (
	ErrMissingType    = errors.New("missing type")
	ErrMissingPayload = errors.New("missing payload")
	ErrMissingUserID  = errors.New("missing userId")
)

type JoinPayload struct {
	Username string          `json:"username"`
	AvatarID domain.AvatarID `json:"avatarId"`
	Password string          `json:"password,omitempty"`
}

// JoinRoom is the only announcement a presence client sends.
// Field order is part of the wire contract.
type JoinRoom struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	UserID  domain.UserID `json:"userId"`
	Payload JoinPayload   `json:"payload"`
}

// NewJoinRoom builds the join announcement. password is only needed for
// private rooms and is omitted from the frame when empty.
func NewJoinRoom(room domain.RoomID, id domain.Identity, password string) JoinRoom {
	return JoinRoom{
		Type:   TypeJoinRoom,
		RoomID: room,
		UserID: id.UserID,
		Payload: JoinPayload{
			Username: id.Username,
			AvatarID: id.AvatarID,
			Password: password,
		},
	}
}

type CreateRoomPayload struct {
	Name     string `json:"name,omitempty"`
	IsPublic bool   `json:"isPublic"`
	Password string `json:"password,omitempty"`
}

// CreateRoom asks the coordinator for a new room. RoomID is optional.
type CreateRoom struct {
	Type    string            `json:"type"`
	RoomID  domain.RoomID     `json:"roomId,omitempty"`
	UserID  domain.UserID     `json:"userId"`
	Payload CreateRoomPayload `json:"payload"`
}

type RoomCreatedPayload struct {
	Name     domain.RoomName `json:"name"`
	IsPublic bool            `json:"isPublic"`
	Creator  domain.UserID   `json:"creator"`
}

type RoomCreatedFrame struct {
	Type    string             `json:"type"`
	RoomID  domain.RoomID      `json:"roomId"`
	Payload RoomCreatedPayload `json:"payload"`
}

func NewRoomCreated(r domain.Room) RoomCreatedFrame {
	return RoomCreatedFrame{
		Type:    TypeRoomCreated,
		RoomID:  r.ID,
		Payload: RoomCreatedPayload{Name: r.Name, IsPublic: r.IsPublic, Creator: r.Creator},
	}
}

type RoomNotFoundPayload struct {
	CreateRoom    bool            `json:"createRoom"`
	SuggestedName domain.RoomName `json:"suggestedName"`
}

type RoomNotFoundFrame struct {
	Type    string              `json:"type"`
	RoomID  domain.RoomID       `json:"roomId"`
	Payload RoomNotFoundPayload `json:"payload"`
}

func NewRoomNotFound(id domain.RoomID, suggested domain.RoomName) RoomNotFoundFrame {
	return RoomNotFoundFrame{
		Type:    TypeRoomNotFound,
		RoomID:  id,
		Payload: RoomNotFoundPayload{CreateRoom: true, SuggestedName: suggested},
	}
}

type LeaveRoom struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type RoomJoinedPayload struct {
	Members  []domain.Member `json:"members"`
	Name     string          `json:"name,omitempty"`
	IsPublic bool            `json:"isPublic"`
}

type RoomJoinedFrame struct {
	Type    string            `json:"type"`
	RoomID  domain.RoomID     `json:"roomId,omitempty"`
	Payload RoomJoinedPayload `json:"payload"`
}

type UserJoinedFrame struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId,omitempty"`
	UserID  domain.UserID `json:"userId"`
	Payload JoinPayload   `json:"payload"`
}

type UserLeftFrame struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId,omitempty"`
	UserID domain.UserID `json:"userId"`
}

type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewRoomJoined(room domain.Room, members []domain.Member) RoomJoinedFrame {
	if members == nil {
		members = []domain.Member{}
	}
	return RoomJoinedFrame{
		Type:   TypeRoomJoined,
		RoomID: room.ID,
		Payload: RoomJoinedPayload{
			Members:  members,
			Name:     string(room.Name),
			IsPublic: room.IsPublic,
		},
	}
}

func NewUserJoined(room domain.RoomID, m domain.Member) UserJoinedFrame {
	return UserJoinedFrame{
		Type:    TypeUserJoined,
		RoomID:  room,
		UserID:  m.UserID,
		Payload: JoinPayload{Username: m.Username, AvatarID: m.AvatarID},
	}
}

func NewUserLeft(room domain.RoomID, id domain.UserID) UserLeftFrame {
	return UserLeftFrame{Type: TypeUserLeft, RoomID: room, UserID: id}
}

func NewError(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: msg}
}

// typed peeks only the frame type; every case decodes its own shape.
type typed struct {
	Type string `json:"type"`
}

type userFrame struct {
	UserID  domain.UserID   `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type errorFrame struct {
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}

type roomRef struct {
	RoomID domain.RoomID `json:"roomId"`
}

// userJoinedPayload also accepts the older nested {"user": {...}} form.
type userJoinedPayload struct {
	Username string          `json:"username"`
	AvatarID domain.AvatarID `json:"avatarId"`
	User     *domain.Member  `json:"user"`
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// DecodeEvent parses one inbound text frame. Unrecognised types decode to
// Unknown whatever else they carry; a known type that is unparseable or
// schema-violating is a *ProtocolError.
func DecodeEvent(data []byte) (Event, error) {
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &ProtocolError{Err: err}
	}
	if t.Type == "" {
		return nil, &ProtocolError{Err: ErrMissingType}
	}

	switch t.Type {
	case TypeRoomJoined:
		var f struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		if !hasPayload(f.Payload) {
			return nil, &ProtocolError{Type: t.Type, Err: ErrMissingPayload}
		}
		var p RoomJoinedPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		for i, m := range p.Members {
			if m.UserID == "" {
				return nil, &ProtocolError{Type: t.Type, Err: fmt.Errorf("member %d: %w", i, ErrMissingUserID)}
			}
		}
		return RoomJoined{Members: p.Members}, nil

	case TypeUserJoined:
		var f userFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		if f.UserID == "" {
			return nil, &ProtocolError{Type: t.Type, Err: ErrMissingUserID}
		}
		m := domain.Member{UserID: f.UserID}
		if hasPayload(f.Payload) {
			var p userJoinedPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return nil, &ProtocolError{Type: t.Type, Err: err}
			}
			m.Username, m.AvatarID = p.Username, p.AvatarID
			if p.User != nil && m.Username == "" {
				m.Username, m.AvatarID = p.User.Username, p.User.AvatarID
			}
		}
		return UserJoined{Member: m}, nil

	case TypeUserLeft:
		var f userFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		if f.UserID == "" {
			return nil, &ProtocolError{Type: t.Type, Err: ErrMissingUserID}
		}
		return UserLeft{UserID: f.UserID}, nil

	case TypeError:
		var f errorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		msg := f.Error
		if msg == "" && hasPayload(f.Payload) {
			_ = json.Unmarshal(f.Payload, &msg)
		}
		return ServerError{Message: msg}, nil

	case TypeRoomNotFound:
		var f roomRef
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, &ProtocolError{Type: t.Type, Err: err}
		}
		return RoomNotFound{RoomID: f.RoomID}, nil

	default:
		return Unknown{Type: t.Type}, nil
	}
}
