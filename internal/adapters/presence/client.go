// Package presence implements the room presence client: one socket to the
// session coordinator, one join announcement, and a local roster kept in sync
// with room_joined / user_joined / user_left events.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }

var (
	ErrServerRejected = errors.New("coordinator error")
	// ErrReplaced means another session of the same user took over the room.
	ErrReplaced = errors.New("session replaced by another connection")
)

// JoinRejectedError is a coordinator refusal received before the first
// room snapshot. Reason is the coordinator's error string, or
// core.TypeRoomNotFound when the room does not exist.
type JoinRejectedError struct {
	Reason string
}

func (e *JoinRejectedError) Error() string { return "join rejected: " + e.Reason }

func (e *JoinRejectedError) Unwrap() error { return ErrServerRejected }

const (
	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultReadLimit  = 32768
	writeWait         = 5 * time.Second
)

type Config struct {
	Endpoint string
	RoomID   domain.RoomID
	Identity domain.Identity
	// Password is sent with the join; only private rooms check it.
	Password string

	PingPeriod time.Duration
	PongWait   time.Duration
	ReadLimit  int64
}

func (c *Config) setDefaults() {
	if c.PingPeriod <= 0 {
		c.PingPeriod = defaultPingPeriod
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
}

type Option func(*Client)

func WithDialer(d Dialer) Option { return func(c *Client) { c.dial = d } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithRosterHandler is called with a copy of the roster after every change.
func WithRosterHandler(fn func([]domain.Member)) Option {
	return func(c *Client) { c.onRoster = fn }
}

// WithStateHandler is called on every state transition. err is non-nil only
// for StateFailed.
func WithStateHandler(fn func(State, error)) Option {
	return func(c *Client) { c.onState = fn }
}

// WithErrorHandler receives non-fatal errors: malformed frames
// (*core.ProtocolError) and coordinator error frames (ErrServerRejected)
// arriving after the room snapshot. An error frame before the snapshot ends
// the session with a *JoinRejectedError instead.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) { c.onError = fn }
}

// Client owns one connection and the roster built from it. All handlers run
// on the client's reader goroutine in event order; they must not call Close.
type Client struct {
	cfg    Config
	dial   Dialer
	logger zerolog.Logger

	onRoster func([]domain.Member)
	onState  func(State, error)
	onError  func(error)

	ctx       context.Context
	cancel    context.CancelFunc
	wg        conc.WaitGroup
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	state  State
	err    error
	roster core.Roster
	conn   Conn

	// synced is set once the first snapshot arrived. Reader goroutine only.
	synced bool
}

// New starts connecting right away and returns without blocking.
func New(cfg Config, opts ...Option) *Client {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:    cfg,
		dial:   DialWebSocket,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
		roster: core.Roster{},
		logger: log.With().
			Str("module", "presence").
			Str("room", string(cfg.RoomID)).
			Str("user", string(cfg.Identity.UserID)).
			Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wg.Go(c.run)
	return c
}

func (c *Client) RoomID() domain.RoomID     { return c.cfg.RoomID }
func (c *Client) Identity() domain.Identity { return c.cfg.Identity }

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the failure that ended the session, if any.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Roster returns a copy of the current member list.
func (c *Client) Roster() []domain.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roster.Clone()
}

// Done is closed once the client reached a terminal state and released the socket.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close ends the session and waits for the client goroutines to exit.
// The roster is kept readable. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			c.closeConn(conn)
		}
	})
	c.wg.Wait()
	return nil
}
