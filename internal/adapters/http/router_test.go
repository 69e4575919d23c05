package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type nopSignal struct{ closed bool }

func (s *nopSignal) TrySend(core.Frame) error { return nil }
func (s *nopSignal) Close()                   { s.closed = true }
func (s *nopSignal) CloseWith(int, string)    { s.closed = true }

func newTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		AutoCreate: true,
	}
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, orch, storage.NewMemoryStore()))
	t.Cleanup(srv.Close)
	return srv, orch
}

func join(t *testing.T, orch *app.Orchestrator, sid core.SessionID, room domain.RoomID, user domain.UserID, name string) {
	t.Helper()
	orch.Registry.BindSignal(sid, &nopSignal{}, func() {})
	_, err := orch.Join(sid, room, domain.Identity{UserID: user, Username: name, AvatarID: "ganyu"}, "")
	require.NoError(t, err)
}

func getJSON(t *testing.T, c *http.Client, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]string
	getJSON(t, srv.Client(), srv.URL+"/health", http.StatusOK, &body)
	require.Equal(t, "ok", body["status"])
}

func TestCreateUserIsStickyPerSession(t *testing.T) {
	srv, _ := newTestServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	browser := &http.Client{Jar: jar}

	post := func(c *http.Client) (int, string) {
		resp, err := c.Post(srv.URL+"/api/users", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			UserID string `json:"userId"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body.UserID
	}

	status, first := post(browser)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, first)

	status, again := post(browser)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, first, again)

	status, other := post(&http.Client{})
	require.Equal(t, http.StatusCreated, status)
	require.NotEqual(t, first, other)
}

func TestRoomsEndpoints(t *testing.T) {
	srv, orch := newTestServer(t)
	c := srv.Client()

	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	getJSON(t, c, srv.URL+"/api/rooms", http.StatusOK, &list)
	require.Empty(t, list.Rooms)

	join(t, orch, "s1", "beta", "u1", "Alice")
	join(t, orch, "s2", "beta", "u2", "Bob")
	join(t, orch, "s3", "alpha", "u3", "Carol")
	_, err := orch.CreateRoom(app.CreateRoomRequest{ID: "hidden", Creator: "u4", Password: "pw"})
	require.NoError(t, err)

	getJSON(t, c, srv.URL+"/api/rooms", http.StatusOK, &list)
	require.Equal(t, []core.RoomInfo{
		{ID: "alpha", Name: "alpha", Creator: "u3", IsPublic: true, MemberCount: 1},
		{ID: "beta", Name: "beta", Creator: "u1", IsPublic: true, MemberCount: 2},
	}, list.Rooms)

	var members struct {
		Members []domain.Member `json:"members"`
	}
	getJSON(t, c, srv.URL+"/api/rooms/beta/members", http.StatusOK, &members)
	require.Equal(t, []domain.Member{
		{UserID: "u1", Username: "Alice", AvatarID: "ganyu"},
		{UserID: "u2", Username: "Bob", AvatarID: "ganyu"},
	}, members.Members)

	var info map[string]any
	getJSON(t, c, srv.URL+"/api/rooms/beta", http.StatusOK, &info)
	require.EqualValues(t, 2, info["members"])

	getJSON(t, c, srv.URL+"/api/rooms/hidden", http.StatusForbidden, nil)

	var missing struct {
		CreateRoom    bool   `json:"createRoom"`
		SuggestedName string `json:"suggestedName"`
	}
	getJSON(t, c, srv.URL+"/api/rooms/nope", http.StatusNotFound, &missing)
	require.True(t, missing.CreateRoom)
	require.NotEmpty(t, missing.SuggestedName)
	getJSON(t, c, srv.URL+"/api/rooms/nope/members", http.StatusNotFound, nil)
}

// browser returns a client holding a session cookie for a freshly issued user.
func browser(t *testing.T, srv *httptest.Server) (*http.Client, domain.UserID) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &http.Client{Jar: jar}
	resp, err := c.Post(srv.URL+"/api/users", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		UserID domain.UserID `json:"userId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return c, body.UserID
}

func do(t *testing.T, c *http.Client, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type roomBody struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
	Creator  string `json:"creator"`
}

func TestCreateRoom(t *testing.T) {
	srv, orch := newTestServer(t)
	owner, uid := browser(t, srv)

	var room roomBody
	status := do(t, owner, http.MethodPost, srv.URL+"/api/rooms", `{"isPublic":true}`, &room)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, room.RoomID, 8)
	require.NotEmpty(t, room.Name)
	require.True(t, room.IsPublic)
	require.Equal(t, string(uid), room.Creator)

	got, ok := orch.Rooms.GetRoom(domain.RoomID(room.RoomID))
	require.True(t, ok)
	require.Equal(t, uid, got.Room().Creator)

	status = do(t, owner, http.MethodPost, srv.URL+"/api/rooms", `{"roomId":"`+room.RoomID+`"}`, nil)
	require.Equal(t, http.StatusConflict, status)

	// without a cookie the body names the creator
	status = do(t, srv.Client(), http.MethodPost, srv.URL+"/api/rooms", `{"roomId":"cli","userId":"u9","name":"Den","password":"pw"}`, &room)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, roomBody{RoomID: "cli", Name: "Den", Creator: "u9"}, room)

	status = do(t, srv.Client(), http.MethodPost, srv.URL+"/api/rooms", `{"roomId":"anon"}`, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status = do(t, owner, http.MethodPost, srv.URL+"/api/rooms", `{"name":"`+strings.Repeat("n", 65)+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateRoomIsCreatorOnly(t *testing.T) {
	srv, orch := newTestServer(t)
	owner, _ := browser(t, srv)
	stranger, _ := browser(t, srv)
	require.Equal(t, http.StatusCreated, do(t, owner, http.MethodPost, srv.URL+"/api/rooms", `{"roomId":"R1","name":"lobby"}`, nil))

	url := srv.URL + "/api/rooms/R1"
	require.Equal(t, http.StatusUnauthorized, do(t, srv.Client(), http.MethodPost, url, `{"name":"x"}`, nil))
	require.Equal(t, http.StatusForbidden, do(t, stranger, http.MethodPost, url, `{"name":"x"}`, nil))
	require.Equal(t, http.StatusNotFound, do(t, owner, http.MethodPost, srv.URL+"/api/rooms/nope", `{"name":"x"}`, nil))

	var room roomBody
	require.Equal(t, http.StatusOK, do(t, owner, http.MethodPost, url, `{"name":"hall","isPublic":true}`, &room))
	require.Equal(t, "hall", room.Name)
	require.True(t, room.IsPublic)

	got, _ := orch.Rooms.GetRoom("R1")
	require.Equal(t, domain.RoomName("hall"), got.Room().Name)
}

func TestEvictRoomIsCreatorOnly(t *testing.T) {
	srv, orch := newTestServer(t)
	owner, uid := browser(t, srv)
	stranger, _ := browser(t, srv)
	join(t, orch, "s1", "R1", uid, "Alice")

	url := srv.URL + "/api/rooms/R1"
	require.Equal(t, http.StatusUnauthorized, do(t, srv.Client(), http.MethodDelete, url, "", nil))
	require.Equal(t, http.StatusForbidden, do(t, stranger, http.MethodDelete, url, "", nil))
	_, ok := orch.Rooms.GetRoom("R1")
	require.True(t, ok)

	require.Equal(t, http.StatusNoContent, do(t, owner, http.MethodDelete, url, "", nil))
	_, ok = orch.Rooms.GetRoom("R1")
	require.False(t, ok)
	_, ok = orch.Registry.RoomOf("s1")
	require.False(t, ok)

	require.Equal(t, http.StatusNotFound, do(t, owner, http.MethodDelete, url, "", nil))
}
