package app

import (
	"sync"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

func (f *RoomManagerImpl) Create(room domain.Room) (core.RoomService, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; ok {
		return nil, false
	}
	rs := core.NewRoomService(room)
	f.rooms[room.ID] = rs
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("creator", string(room.Creator)).Bool("public", room.IsPublic).Msg("room created")
	return rs, true
}

func (f *RoomManagerImpl) GetOrCreate(room domain.Room) core.RoomService {
	f.mu.RLock()
	rs, ok := f.rooms[room.ID]
	f.mu.RUnlock()
	if ok {
		return rs
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if rs, ok = f.rooms[room.ID]; ok {
		return rs
	}
	rs = core.NewRoomService(room)
	f.rooms[room.ID] = rs
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room created on join")
	return rs
}

func (f *RoomManagerImpl) GetRoom(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for _, r := range f.rooms {
		meta := r.Room()
		out = append(out, core.RoomInfo{
			ID:          meta.ID,
			Name:        meta.Name,
			Creator:     meta.Creator,
			IsPublic:    meta.IsPublic,
			MemberCount: r.MemberCount(),
		})
	}
	return out
}

func (f *RoomManagerImpl) DropIfEmpty(id domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok || room.MemberCount() > 0 {
		return false
	}
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("empty room dropped")
	return true
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
}
