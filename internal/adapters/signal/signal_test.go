package signal

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/adapters/presence"
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type frame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Error   string `json:"error"`
	Payload struct {
		Members       []domain.Member `json:"members"`
		Name          string          `json:"name"`
		Username      string          `json:"username"`
		AvatarID      string          `json:"avatarId"`
		IsPublic      bool            `json:"isPublic"`
		Creator       string          `json:"creator"`
		CreateRoom    bool            `json:"createRoom"`
		SuggestedName string          `json:"suggestedName"`
	} `json:"payload"`
}

type coordinator struct {
	srv  *httptest.Server
	orch *app.Orchestrator
}

func newCoordinator(t *testing.T) *coordinator {
	return newCoordinatorWith(t, nil)
}

func newCoordinatorWith(t *testing.T, tune func(*app.Orchestrator)) *coordinator {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	orch := &app.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		AutoCreate: true,
	}
	if tune != nil {
		tune(orch)
	}
	ctl := NewSignalWSController(orch, 0, 0)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &coordinator{srv: srv, orch: orch}
}

func (co *coordinator) wsURL() string {
	return "ws" + strings.TrimPrefix(co.srv.URL, "http") + "/ws"
}

func (co *coordinator) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(co.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func joinMsg(room, user, name string) string {
	return fmt.Sprintf(`{"type":"join_room","roomId":%q,"userId":%q,"payload":{"username":%q,"avatarId":"kazuha"}}`, room, user, name)
}

func write(t *testing.T, ws *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func read(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitFor)))
	var f frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func ids(ms []domain.Member) []domain.UserID {
	out := make([]domain.UserID, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.UserID)
	}
	return out
}

func TestJoinSnapshotIncludesJoinerAndNotifiesOthers(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	b := co.dial(t)

	write(t, a, joinMsg("R1", "u1", "Alice"))
	got := read(t, a)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, "R1", got.Payload.Name)
	require.Equal(t, []domain.UserID{"u1"}, ids(got.Payload.Members))

	write(t, b, joinMsg("R1", "u2", "Bob"))
	got = read(t, b)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, []domain.UserID{"u1", "u2"}, ids(got.Payload.Members))

	got = read(t, a)
	require.Equal(t, "user_joined", got.Type)
	require.Equal(t, "u2", got.UserID)
	require.Equal(t, "Bob", got.Payload.Username)
	require.Equal(t, "kazuha", got.Payload.AvatarID)
}

func TestLeaveRoomRepliesAndNotifies(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	b := co.dial(t)
	write(t, a, joinMsg("R1", "u1", "Alice"))
	read(t, a)
	write(t, b, joinMsg("R1", "u2", "Bob"))
	read(t, b)
	read(t, a)

	write(t, b, `{"type":"leave_room","roomId":"R1"}`)
	got := read(t, b)
	require.Equal(t, "room_left", got.Type)
	require.Equal(t, "R1", got.RoomID)

	got = read(t, a)
	require.Equal(t, "user_left", got.Type)
	require.Equal(t, "u2", got.UserID)

	write(t, b, `{"type":"leave_room","roomId":"R1"}`)
	got = read(t, b)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "not_in_room", got.Error)
}

func TestDisconnectBroadcastsUserLeftAndDropsEmptyRoom(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	b := co.dial(t)
	write(t, a, joinMsg("R1", "u1", "Alice"))
	read(t, a)
	write(t, b, joinMsg("R1", "u2", "Bob"))
	read(t, b)
	read(t, a)

	require.NoError(t, b.Close())
	got := read(t, a)
	require.Equal(t, "user_left", got.Type)
	require.Equal(t, "u2", got.UserID)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		_, ok := co.orch.Rooms.GetRoom("R1")
		return !ok
	}, waitFor, 10*time.Millisecond)
}

func TestSwitchingRoomsLeavesThePreviousOne(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	b := co.dial(t)
	write(t, a, joinMsg("R1", "u1", "Alice"))
	read(t, a)
	write(t, b, joinMsg("R1", "u2", "Bob"))
	read(t, b)
	read(t, a)

	write(t, b, joinMsg("R2", "u2", "Bob"))
	got := read(t, b)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, []domain.UserID{"u2"}, ids(got.Payload.Members))

	got = read(t, a)
	require.Equal(t, "user_left", got.Type)
	require.Equal(t, "u2", got.UserID)
}

func TestSecondSessionOfSameUserReplacesTheFirst(t *testing.T) {
	co := newCoordinator(t)
	first := co.dial(t)
	b := co.dial(t)
	write(t, first, joinMsg("R1", "u1", "Alice"))
	read(t, first)
	write(t, b, joinMsg("R1", "u2", "Bob"))
	read(t, b)
	read(t, first)

	second := co.dial(t)
	write(t, second, joinMsg("R1", "u1", "Alice2"))
	got := read(t, second)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, []domain.UserID{"u2", "u1"}, ids(got.Payload.Members))

	got = read(t, b)
	require.Equal(t, "user_joined", got.Type)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "Alice2", got.Payload.Username)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(waitFor)))
	var err error
	for err == nil {
		_, _, err = first.ReadMessage()
	}
	require.True(t, websocket.IsCloseError(err, core.CloseReplaced), "got %v", err)
}

func noAutoCreate(o *app.Orchestrator) { o.AutoCreate = false }

func TestJoinMissingRoomSuggestsCreating(t *testing.T) {
	co := newCoordinatorWith(t, noAutoCreate)
	a := co.dial(t)

	write(t, a, joinMsg("R1", "u1", "Alice"))
	got := read(t, a)
	require.Equal(t, "room_not_found", got.Type)
	require.Equal(t, "R1", got.RoomID)
	require.True(t, got.Payload.CreateRoom)
	require.NotEmpty(t, got.Payload.SuggestedName)
	_, ok := co.orch.Rooms.GetRoom("R1")
	require.False(t, ok)
}

func TestCreatePrivateRoomThenJoinWithPassword(t *testing.T) {
	co := newCoordinatorWith(t, noAutoCreate)
	owner := co.dial(t)
	guest := co.dial(t)

	write(t, owner, `{"type":"create_room","roomId":"R1","userId":"u1","payload":{"name":"lobby","isPublic":false,"password":"pw"}}`)
	got := read(t, owner)
	require.Equal(t, "room_created", got.Type)
	require.Equal(t, "R1", got.RoomID)
	require.Equal(t, "lobby", got.Payload.Name)
	require.Equal(t, "u1", got.Payload.Creator)
	require.False(t, got.Payload.IsPublic)

	write(t, owner, `{"type":"create_room","roomId":"R1","userId":"u1","payload":{}}`)
	got = read(t, owner)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "room_exists", got.Error)

	write(t, owner, joinMsg("R1", "u1", "Alice"))
	got = read(t, owner)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, "lobby", got.Payload.Name)

	write(t, guest, joinMsg("R1", "u2", "Bob"))
	got = read(t, guest)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "invalid_password", got.Error)

	write(t, guest, `{"type":"join_room","roomId":"R1","userId":"u2","payload":{"username":"Bob","avatarId":"kazuha","password":"pw"}}`)
	got = read(t, guest)
	require.Equal(t, "room_joined", got.Type)
	require.Equal(t, []domain.UserID{"u1", "u2"}, ids(got.Payload.Members))
}

func TestCreateRoomGeneratesID(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	write(t, a, `{"type":"create_room","userId":"u1","payload":{"isPublic":true}}`)
	got := read(t, a)
	require.Equal(t, "room_created", got.Type)
	require.Len(t, got.RoomID, 8)
	require.NotEmpty(t, got.Payload.Name)
	require.True(t, got.Payload.IsPublic)
}

func TestPingAndUnknownTypes(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)

	write(t, a, `{"type":"ping"}`)
	require.Equal(t, "pong", read(t, a).Type)

	write(t, a, `{"type":"offer","sdp":"x"}`)
	got := read(t, a)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "unknown_type", got.Error)

	write(t, a, `not json`)
	got = read(t, a)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "bad_json", got.Error)
}

func TestJoinValidation(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"empty room", `{"type":"join_room","roomId":"","userId":"u1","payload":{"username":"A","avatarId":"kazuha"}}`, domain.ErrRoomIDEmpty.Error()},
		{"missing user", `{"type":"join_room","roomId":"R1","userId":"","payload":{"username":"A","avatarId":"kazuha"}}`, domain.ErrUserIDEmpty.Error()},
		{"empty username", `{"type":"join_room","roomId":"R1","userId":"u1","payload":{"username":"","avatarId":"kazuha"}}`, domain.ErrUsernameEmpty.Error()},
		{"bad avatar", `{"type":"join_room","roomId":"R1","userId":"u1","payload":{"username":"A","avatarId":"pikachu"}}`, domain.ErrUnknownAvatar.Error()},
		{"long room", `{"type":"join_room","roomId":"` + strings.Repeat("r", 37) + `","userId":"u1","payload":{"username":"A","avatarId":"kazuha"}}`, domain.ErrRoomIDTooLong.Error()},
	}
	co := newCoordinator(t)
	a := co.dial(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write(t, a, tt.msg)
			got := read(t, a)
			require.Equal(t, "error", got.Type)
			require.Equal(t, tt.want, got.Error)
		})
	}
}

func TestIdentityIsFixedPerSocket(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	write(t, a, joinMsg("R1", "u1", "Alice"))
	read(t, a)

	write(t, a, joinMsg("R1", "u9", "Mallory"))
	got := read(t, a)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "identity_mismatch", got.Error)
}

func TestJoinIsRateLimited(t *testing.T) {
	co := newCoordinator(t)
	a := co.dial(t)
	for i := 0; i < joinLimit; i++ {
		write(t, a, joinMsg(fmt.Sprintf("R%d", i), "u1", "Alice"))
		require.Equal(t, "room_joined", read(t, a).Type)
	}
	write(t, a, joinMsg("R9", "u1", "Alice"))
	got := read(t, a)
	require.Equal(t, "error", got.Type)
	require.Equal(t, "rate_limited", got.Error)
}

func TestPresenceClientsSeeEachOther(t *testing.T) {
	co := newCoordinator(t)
	ep, err := presence.ResolveEndpoint(co.srv.URL)
	require.NoError(t, err)

	alice := presence.New(presence.Config{
		Endpoint: ep,
		RoomID:   "R1",
		Identity: domain.Identity{UserID: "u1", Username: "Alice", AvatarID: "kazuha"},
	})
	defer alice.Close()
	require.Eventually(t, func() bool { return len(alice.Roster()) == 1 }, waitFor, 10*time.Millisecond)

	bob := presence.New(presence.Config{
		Endpoint: ep,
		RoomID:   "R1",
		Identity: domain.Identity{UserID: "u2", Username: "Bob", AvatarID: "diluc"},
	})
	require.Eventually(t, func() bool { return len(alice.Roster()) == 2 }, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(bob.Roster()) == 2 }, waitFor, 10*time.Millisecond)
	require.Equal(t, []domain.UserID{"u1", "u2"}, ids(bob.Roster()))

	require.NoError(t, bob.Close())
	require.Equal(t, presence.StateClosed, bob.State())
	require.Eventually(t, func() bool {
		r := alice.Roster()
		return len(r) == 1 && r[0].UserID == "u1"
	}, waitFor, 10*time.Millisecond)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	require.True(t, rl.Allow("u1"))
	require.True(t, rl.Allow("u1"))
	require.False(t, rl.Allow("u1"))
	require.True(t, rl.Allow("u2"))

	now = now.Add(11 * time.Second)
	require.True(t, rl.Allow("u1"))
}

func TestRateLimiterForgetsIdleUsers(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	for i := range 100 {
		require.True(t, rl.Allow(domain.UserID(fmt.Sprintf("u%d", i))))
	}
	require.Len(t, rl.history, 100)

	now = now.Add(11 * time.Second)
	require.True(t, rl.Allow("late"))
	require.Len(t, rl.history, 1)
	require.Contains(t, rl.history, domain.UserID("late"))
}
