package presence

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is an indirection over *websocket.Conn to ease testing.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	WriteControl(mt int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	Close() error
}

// Dialer opens the presence socket.
type Dialer func(ctx context.Context, endpoint string) (Conn, error)

var wsDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 10 * time.Second,
}

// DialWebSocket is the default Dialer.
func DialWebSocket(ctx context.Context, endpoint string) (Conn, error) {
	ws, _, err := wsDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}
