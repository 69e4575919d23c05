package app

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrIdentityMismatch = errors.New("identity mismatch")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
	ErrBadPassword      = errors.New("invalid password")
	ErrNotCreator       = errors.New("only the room creator may do this")
)

const createAttempts = 5

// Orchestrator applies membership changes and emits the matching presence
// frames. Changes are serialized so that a joiner receives its snapshot before
// any later broadcast.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy

	// AutoCreate lets a join open a public room that does not exist yet.
	AutoCreate bool

	mu sync.Mutex
}

type CreateRoomRequest struct {
	ID       domain.RoomID
	Name     domain.RoomName
	Creator  domain.UserID
	IsPublic bool
	Password string
}

// RoomUpdate carries the settings to change; nil fields are left alone.
type RoomUpdate struct {
	Name     *domain.RoomName
	IsPublic *bool
	Password *string
}

type JoinResult struct {
	Room     core.RoomService
	Snapshot []domain.Member
	// Replaced is the older session of the same user that was evicted, if any.
	Replaced core.SessionID
}

// CreateRoom registers an empty room. A missing id or name is generated.
func (o *Orchestrator) CreateRoom(req CreateRoomRequest) (domain.Room, error) {
	if err := domain.ValidateRoomName(req.Name); err != nil {
		return domain.Room{}, err
	}
	if req.Creator == "" {
		return domain.Room{}, domain.ErrUserIDEmpty
	}
	room := domain.Room{
		ID:       req.ID,
		Name:     req.Name,
		Creator:  req.Creator,
		IsPublic: req.IsPublic,
		Password: req.Password,
	}
	if room.Name == "" {
		room.Name = SuggestRoomName()
	}
	if room.ID != "" {
		if err := domain.ValidateRoomID(room.ID); err != nil {
			return domain.Room{}, err
		}
		if _, ok := o.Rooms.Create(room); !ok {
			return domain.Room{}, ErrRoomExists
		}
		return room, nil
	}
	for range createAttempts {
		room.ID = NewRoomID()
		if _, ok := o.Rooms.Create(room); ok {
			return room, nil
		}
	}
	return domain.Room{}, ErrRoomExists
}

// UpdateRoom changes the settings of a room on behalf of its creator.
func (o *Orchestrator) UpdateRoom(id domain.RoomID, by domain.UserID, upd RoomUpdate) (domain.Room, error) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	if room.Room().Creator != by {
		return domain.Room{}, ErrNotCreator
	}
	if upd.Name != nil {
		if err := domain.ValidateRoomName(*upd.Name); err != nil {
			return domain.Room{}, err
		}
	}
	return room.Update(func(r *domain.Room) {
		if upd.Name != nil {
			r.Name = *upd.Name
		}
		if upd.IsPublic != nil {
			r.IsPublic = *upd.IsPublic
		}
		if upd.Password != nil {
			r.Password = *upd.Password
		}
	}), nil
}

func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, id domain.Identity, password string) (JoinResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	signal, ok := o.Registry.Signal(sid)
	if !ok {
		return JoinResult{}, ErrUnknownSession
	}
	if prev, ok := o.Registry.Identity(sid); ok && prev.UserID != id.UserID {
		return JoinResult{}, ErrIdentityMismatch
	}
	room, ok := o.Rooms.GetRoom(roomID)
	switch {
	case !ok && !o.AutoCreate:
		return JoinResult{}, ErrRoomNotFound
	case !ok:
		room = o.Rooms.GetOrCreate(domain.Room{ID: roomID, Name: domain.RoomName(roomID), Creator: id.UserID, IsPublic: true})
	default:
		if meta := room.Room(); meta.Creator != id.UserID && !meta.Admits(password) {
			return JoinResult{}, ErrBadPassword
		}
	}
	if from, ok := o.Registry.RoomOf(sid); ok && from != roomID {
		o.leaveLocked(sid, from)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left previous room")
	}
	o.Registry.SetIdentity(sid, id)

	res := JoinResult{Room: room}
	if old, ok := room.SessionOf(id.UserID); ok && old != sid {
		room.RemoveMember(old)
		o.Registry.RemoveRoom(old)
		if prev, ok := o.Registry.Signal(old); ok {
			prev.CloseWith(core.CloseReplaced, "replaced")
		}
		o.Registry.Cancel(old)
		res.Replaced = old
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("replaced", string(old)).Msg("replaced older session")
	}

	room.AddMember(sid, core.NewMemberSession(id.Member(), signal))
	o.Registry.UpdateRoom(sid, roomID)
	res.Snapshot = room.MembersSnapshot()

	o.send(signal, core.NewRoomJoined(room.Room(), res.Snapshot))
	o.publish(room, sid, core.NewUserJoined(roomID, id.Member()))
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Int("members", len(res.Snapshot)).Msg("joined")
	return res, nil
}

// Leave removes sid from its room and tells the remaining members.
func (o *Orchestrator) Leave(sid core.SessionID) (domain.RoomID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	o.leaveLocked(sid, roomID)
	return roomID, true
}

func (o *Orchestrator) leaveLocked(sid core.SessionID, roomID domain.RoomID) {
	o.Registry.RemoveRoom(sid)
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return
	}
	meta, ok := room.RemoveMember(sid)
	if !ok {
		return
	}
	o.publish(room, sid, core.NewUserLeft(roomID, meta.UserID))
	o.Rooms.DropIfEmpty(roomID)
}

func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Registry.Unbind(sid)
}

// EvictRoom closes every socket in the room and forgets it. Only the creator
// may do so.
func (o *Orchestrator) EvictRoom(id domain.RoomID, by domain.UserID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return ErrRoomNotFound
	}
	if room.Room().Creator != by {
		return ErrNotCreator
	}
	for _, m := range room.MembersSnapshot() {
		if sid, ok := room.SessionOf(m.UserID); ok {
			room.RemoveMember(sid)
			o.Registry.RemoveRoom(sid)
			o.Registry.Cancel(sid)
		}
	}
	o.Rooms.StopRoom(id)
	log.Info().Str("module", "app.orch").Str("room", string(id)).Str("by", string(by)).Msg("room evicted")
	return nil
}

func (o *Orchestrator) publish(room core.RoomService, from core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("publish marshal")
		return
	}
	res := room.Broadcast(from, b)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.orch").Str("sid", string(slow)).Msg("kicking slow member")
			o.Registry.Cancel(slow)
		case NoAction:
		}
	}
}

func (o *Orchestrator) send(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("send marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Msg("send dropped")
	}
}
