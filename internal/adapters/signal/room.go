package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p core.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, core.ReasonBadPayload)
		return
	}
	if err := domain.ValidateRoomID(p.RoomID); err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	id, err := domain.NewIdentity(p.UserID, p.Payload.Username, p.Payload.AvatarID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("invalid identity")
		ctl.sendError(conn, err.Error())
		return
	}
	if !ctl.Limiter.Allow(id.UserID) {
		log.Warn().Str("module", "signal").Str("user", string(id.UserID)).Msg("join rate limited")
		ctl.sendError(conn, core.ReasonRateLimited)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(p.RoomID)).Msg("join")
	if _, err := ctl.Orch.Join(sid, p.RoomID, id, p.Payload.Password); err != nil {
		switch {
		case errors.Is(err, app.ErrRoomNotFound):
			ctl.sendJSON(conn, core.NewRoomNotFound(p.RoomID, app.SuggestRoomName()))
		case errors.Is(err, app.ErrBadPassword):
			ctl.sendError(conn, core.ReasonInvalidPassword)
		case errors.Is(err, app.ErrIdentityMismatch):
			ctl.sendError(conn, core.ReasonIdentityMismatch)
		default:
			log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
			ctl.sendError(conn, core.ReasonJoinFailed)
		}
	}
}

// handleCreate registers a room owned by the sender. The sender still has to
// join it.
func (ctl *SignalWSController) handleCreate(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p core.CreateRoom
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ReasonBadPayload)
		return
	}
	if prev, ok := ctl.Orch.Registry.Identity(sid); ok && prev.UserID != p.UserID {
		ctl.sendError(conn, core.ReasonIdentityMismatch)
		return
	}
	if p.UserID != "" && !ctl.Limiter.Allow(p.UserID) {
		ctl.sendError(conn, core.ReasonRateLimited)
		return
	}

	room, err := ctl.Orch.CreateRoom(app.CreateRoomRequest{
		ID:       p.RoomID,
		Name:     domain.RoomName(p.Payload.Name),
		Creator:  p.UserID,
		IsPublic: p.Payload.IsPublic,
		Password: p.Payload.Password,
	})
	switch {
	case errors.Is(err, app.ErrRoomExists):
		ctl.sendError(conn, core.ReasonRoomExists)
	case err != nil:
		ctl.sendError(conn, err.Error())
	default:
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(room.ID)).Msg("room created")
		ctl.sendJSON(conn, core.NewRoomCreated(room))
	}
}

// handleLeave exits the current room; the socket stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p core.LeaveRoom
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ReasonBadPayload)
		return
	}
	current, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok || (p.RoomID != "" && p.RoomID != current) {
		ctl.sendError(conn, core.ReasonNotInRoom)
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(current)).Msg("leave")
	ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, core.LeaveRoom{Type: core.TypeRoomLeft, RoomID: current})
}
