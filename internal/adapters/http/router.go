package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/dkeye/Presence/internal/adapters/signal"
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/storage"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName   = "PresenceSessions"
	sessionUserID = "user_id"
)

type handlers struct {
	orch  *app.Orchestrator
	users storage.UserStore
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, users storage.UserStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 365, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	h := &handlers{orch: orch, users: users}
	ctrl := signal.NewSignalWSController(orch, cfg.ReadLimit, cfg.PingPeriod)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.POST("/users", h.createUser)

	rooms := api.Group("/rooms")
	rooms.GET("", h.listRooms)
	rooms.POST("", h.createRoom)
	rooms.GET("/:id", h.getRoom)
	rooms.POST("/:id", h.updateRoom)
	rooms.GET("/:id/members", h.roomMembers)
	rooms.DELETE("/:id", h.evictRoom)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

// createUser hands out a user id. A browser that already holds one in its
// session cookie gets the same id back.
func (h *handlers) createUser(c *gin.Context) {
	session := sessions.Default(c)
	if known, ok := session.Get(sessionUserID).(string); ok && known != "" {
		exists, err := h.users.UserExists(c.Request.Context(), domain.UserID(known))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("user lookup")
		} else if exists {
			c.JSON(http.StatusOK, gin.H{"userId": known})
			return
		}
	}

	id, err := h.users.CreateUser(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	session.Set(sessionUserID, string(id))
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	log.Info().Str("module", "adapters.http").Str("user", string(id)).Msg("user issued")
	c.JSON(http.StatusCreated, gin.H{"userId": id})
}

func sessionUser(c *gin.Context) domain.UserID {
	id, _ := sessions.Default(c).Get(sessionUserID).(string)
	return domain.UserID(id)
}

func roomJSON(r domain.Room) gin.H {
	return gin.H{
		"roomId":   r.ID,
		"name":     r.Name,
		"isPublic": r.IsPublic,
		"creator":  r.Creator,
	}
}

// roomError maps orchestrator failures to a status code.
func roomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
	case errors.Is(err, app.ErrNotCreator):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the room creator can do this"})
	case errors.Is(err, app.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Room already exists"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// listRooms shows public rooms only.
func (h *handlers) listRooms(c *gin.Context) {
	all := h.orch.Rooms.List()
	rooms := make([]core.RoomInfo, 0, len(all))
	for _, r := range all {
		if r.IsPublic {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

type createRoomRequest struct {
	RoomID   domain.RoomID   `json:"roomId"`
	Name     domain.RoomName `json:"name"`
	UserID   domain.UserID   `json:"userId"`
	IsPublic bool            `json:"isPublic"`
	Password string          `json:"password"`
}

// createRoom registers an empty room. The creator is the session user, or
// the body's userId for clients without a cookie.
func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	creator := sessionUser(c)
	if creator == "" {
		creator = req.UserID
	}
	if creator == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User id required"})
		return
	}
	room, err := h.orch.CreateRoom(app.CreateRoomRequest{
		ID:       req.RoomID,
		Name:     req.Name,
		Creator:  creator,
		IsPublic: req.IsPublic,
		Password: req.Password,
	})
	if err != nil {
		roomError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room.ID)).Str("creator", string(creator)).Msg("room created")
	c.JSON(http.StatusCreated, roomJSON(room))
}

type updateRoomRequest struct {
	Name     *domain.RoomName `json:"name"`
	IsPublic *bool            `json:"isPublic"`
	Password *string          `json:"password"`
}

func (h *handlers) updateRoom(c *gin.Context) {
	user := sessionUser(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}
	var req updateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	room, err := h.orch.UpdateRoom(domain.RoomID(c.Param("id")), user, app.RoomUpdate{
		Name:     req.Name,
		IsPublic: req.IsPublic,
		Password: req.Password,
	})
	if err != nil {
		roomError(c, err)
		return
	}
	c.JSON(http.StatusOK, roomJSON(room))
}

// getRoom describes a public room. A missing room comes with a suggested
// name for creating it.
func (h *handlers) getRoom(c *gin.Context) {
	room, ok := h.orch.Rooms.GetRoom(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":         "Room not found",
			"createRoom":    true,
			"suggestedName": app.SuggestRoomName(),
			"roomId":        c.Param("id"),
		})
		return
	}
	meta := room.Room()
	if !meta.IsPublic {
		c.JSON(http.StatusForbidden, gin.H{"error": "Room is private"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       meta.ID,
		"name":     meta.Name,
		"creator":  meta.Creator,
		"isPublic": meta.IsPublic,
		"members":  room.MemberCount(),
	})
}

func (h *handlers) roomMembers(c *gin.Context) {
	room, ok := h.orch.Rooms.GetRoom(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": room.MembersSnapshot()})
}

// evictRoom closes a room on behalf of its creator.
func (h *handlers) evictRoom(c *gin.Context) {
	user := sessionUser(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}
	if err := h.orch.EvictRoom(domain.RoomID(c.Param("id")), user); err != nil {
		roomError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
