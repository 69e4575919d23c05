package presence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Presence/internal/core"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
)

func (c *Client) run() {
	defer close(c.done)
	defer c.cancel()

	conn, err := c.dial(c.ctx, c.cfg.Endpoint)
	if err != nil {
		if c.ctx.Err() != nil {
			c.finish(StateClosed, nil)
			return
		}
		c.logger.Error().Err(err).Str("endpoint", c.cfg.Endpoint).Msg("dial failed")
		c.finish(StateFailed, &core.ConnectionError{Op: "dial", Err: err})
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		c.finish(StateClosed, nil)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.announce(conn); err != nil {
		c.closeConn(conn)
		c.finish(StateFailed, &core.ConnectionError{Op: "join", Err: err})
		return
	}
	c.logger.Info().Msg("join announced")
	c.transition(StateJoined)

	var pumps conc.WaitGroup
	pumps.Go(func() { c.pingPump(conn) })
	err = c.readPump(conn)
	c.cancel()
	c.closeConn(conn)
	pumps.Wait()

	if err != nil {
		op := "read"
		var rejected *JoinRejectedError
		if errors.As(err, &rejected) {
			op = "join"
		}
		c.logger.Warn().Err(err).Str("op", op).Msg("connection lost")
		c.finish(StateFailed, &core.ConnectionError{Op: op, Err: err})
		return
	}
	c.finish(StateClosed, nil)
}

func (c *Client) announce(conn Conn) error {
	frame, err := json.Marshal(core.NewJoinRoom(c.cfg.RoomID, c.cfg.Identity, c.cfg.Password))
	if err != nil {
		return fmt.Errorf("encode join: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// readPump returns nil when the session was closed locally, ErrReplaced when
// the coordinator handed the seat to another session, and a
// *JoinRejectedError when the join was refused.
func (c *Client) readPump(conn Conn) error {
	conn.SetReadLimit(c.cfg.ReadLimit)
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)) }
	if err := extend(); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, core.CloseReplaced) {
				return ErrReplaced
			}
			return err
		}
		_ = extend()
		if err := c.handleFrame(data); err != nil {
			return err
		}
	}
}

func (c *Client) pingPump(conn Conn) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// handleFrame returns an error only when the session cannot go on.
func (c *Client) handleFrame(data []byte) error {
	ev, err := core.DecodeEvent(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping bad frame")
		c.report(err)
		return nil
	}

	switch e := ev.(type) {
	case core.ServerError:
		c.logger.Warn().Str("error", e.Message).Bool("synced", c.synced).Msg("coordinator error")
		if !c.synced {
			return &JoinRejectedError{Reason: e.Message}
		}
		c.report(fmt.Errorf("%w: %s", ErrServerRejected, e.Message))
		return nil
	case core.RoomNotFound:
		return &JoinRejectedError{Reason: core.TypeRoomNotFound}
	case core.Unknown:
		c.logger.Debug().Str("type", e.Type).Msg("ignoring frame")
		return nil
	case core.RoomJoined:
		c.synced = true
	}

	c.mu.Lock()
	next, err := core.Apply(c.roster, ev)
	c.roster = next
	c.mu.Unlock()

	var stateErr *core.StateError
	if errors.As(err, &stateErr) {
		c.logger.Debug().Err(err).Msg("roster unchanged")
		return nil
	}
	c.logger.Debug().Str("type", ev.EventType()).Int("members", len(next)).Msg("roster updated")
	if c.onRoster != nil {
		c.onRoster(next.Clone())
	}
	return nil
}

func (c *Client) report(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Client) transition(s State) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(s, nil)
	}
}

// finish moves to a terminal state once; later calls are no-ops.
func (c *Client) finish(s State, err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state, c.err = s, err
	c.mu.Unlock()
	c.logger.Info().Str("state", s.String()).Msg("session ended")
	if c.onState != nil {
		c.onState(s, err)
	}
}

func (c *Client) closeConn(conn Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
