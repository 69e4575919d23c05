package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomPostsRequest(t *testing.T) {
	var (
		got          RoomRequest
		method, path string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"roomId":"Ab3dEf9h","name":"CozyPanda","isPublic":false,"creator":"u1"}`))
	}))
	defer srv.Close()

	room, err := CreateRoom(context.Background(), srv.URL+"/", RoomRequest{Creator: "u1", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/api/rooms", path)
	require.Equal(t, RoomRequest{Creator: "u1", Password: "pw"}, got)
	require.Equal(t, domain.Room{ID: "Ab3dEf9h", Name: "CozyPanda", Creator: "u1", Password: "pw"}, room)
}

func TestCreateRoomReportsRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Room already exists"}`))
	}))
	defer srv.Close()

	_, err := CreateRoom(context.Background(), srv.URL, RoomRequest{ID: "R1", Creator: "u1"})
	require.ErrorContains(t, err, "409")
	require.ErrorContains(t, err, "Room already exists")
}
