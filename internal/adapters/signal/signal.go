package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32

	DefaultReadLimit  = 32768
	DefaultPingPeriod = 54 * time.Second
	joinLimit         = 5
	joinWindow        = 10 * time.Second
)

type SignalWSController struct {
	Orch    *app.Orchestrator
	Limiter *RoomRateLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(orch *app.Orchestrator, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	if pingPeriod <= 0 {
		pingPeriod = DefaultPingPeriod
	}
	return &SignalWSController{
		Orch:       orch,
		Limiter:    NewRoomRateLimiter(joinLimit, joinWindow),
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

// pongWait is a little longer than the ping period so one late pong is tolerated.
func (ctl *SignalWSController) pongWait() time.Duration {
	return ctl.PingPeriod * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// CloseWith sends a close frame carrying code and reason, then closes.
func (c *WsSignalConn) CloseWith(code int, reason string) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if !closed {
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			log.Warn().Err(err).Str("module", "signal").Int("code", code).Msg("close frame")
		}
	}
	c.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
