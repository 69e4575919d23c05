// Package supervisor keeps a presence session alive across transient network
// failures by reconstructing the client with exponential backoff.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/Presence/internal/adapters/presence"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrGaveUp = errors.New("reconnect attempts exhausted")

type Config struct {
	Client presence.Config
	Dialer presence.Dialer

	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxRetries bounds consecutive failed sessions; 0 retries forever.
	MaxRetries int
}

// Handlers are forwarded to every client the supervisor creates.
type Handlers struct {
	OnRoster func([]domain.Member)
	OnState  func(presence.State, error)
	OnError  func(error)
}

type Supervisor struct {
	cfg    Config
	h      Handlers
	logger zerolog.Logger

	mu      sync.RWMutex
	current *presence.Client
	roster  []domain.Member
	rejoins int
}

func New(cfg Config, h Handlers) *Supervisor {
	return &Supervisor{
		cfg: cfg,
		h:   h,
		logger: log.With().
			Str("module", "supervisor").
			Str("room", string(cfg.Client.RoomID)).
			Logger(),
	}
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if s.cfg.InitialInterval > 0 {
		b.InitialInterval = s.cfg.InitialInterval
	}
	if s.cfg.MaxInterval > 0 {
		b.MaxInterval = s.cfg.MaxInterval
	}
	b.Reset()
	return b
}

// Run blocks until ctx is done, retries are exhausted, or the session ends in
// a way another attempt cannot fix (see retryable). Each attempt is a
// fresh client, so every reconnect re-announces join_room and receives a new
// snapshot.
func (s *Supervisor) Run(ctx context.Context) error {
	b := s.newBackOff()
	failures := 0

	for attempt := 1; ; attempt++ {
		var joined atomic.Bool
		c := presence.New(s.cfg.Client, s.options(&joined)...)
		s.mu.Lock()
		s.current = c
		if attempt > 1 {
			s.rejoins++
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			_ = c.Close()
			return ctx.Err()
		case <-c.Done():
			_ = c.Close()
		}

		if c.State() == presence.StateClosed {
			return nil
		}
		if !retryable(c.Err()) {
			s.logger.Warn().Err(c.Err()).Int("attempt", attempt).Msg("session ended for good")
			return c.Err()
		}
		if joined.Load() {
			b.Reset()
			failures = 0
		}
		failures++
		if s.cfg.MaxRetries > 0 && failures > s.cfg.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, failures, c.Err())
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("%w: %w", ErrGaveUp, c.Err())
		}
		s.logger.Warn().Err(c.Err()).Int("attempt", attempt).Dur("wait", wait).Msg("session lost, reconnecting")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// retryable reports whether a failed session is worth another attempt. A seat
// taken by another session or a refused join will not change on retry, except
// for rate limiting.
func retryable(err error) bool {
	if errors.Is(err, presence.ErrReplaced) {
		return false
	}
	var rejected *presence.JoinRejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason == core.ReasonRateLimited
	}
	return true
}

func (s *Supervisor) options(joined *atomic.Bool) []presence.Option {
	opts := []presence.Option{
		presence.WithRosterHandler(func(m []domain.Member) {
			joined.Store(true)
			s.mu.Lock()
			s.roster = m
			s.mu.Unlock()
			if s.h.OnRoster != nil {
				s.h.OnRoster(m)
			}
		}),
		presence.WithStateHandler(func(st presence.State, err error) {
			if s.h.OnState != nil {
				s.h.OnState(st, err)
			}
		}),
	}
	if s.h.OnError != nil {
		opts = append(opts, presence.WithErrorHandler(s.h.OnError))
	}
	if s.cfg.Dialer != nil {
		opts = append(opts, presence.WithDialer(s.cfg.Dialer))
	}
	return opts
}

// Roster is the last roster any session reported. It survives reconnects
// until the next snapshot replaces it.
func (s *Supervisor) Roster() []domain.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Member, len(s.roster))
	copy(out, s.roster)
	return out
}

// Rejoins counts how many replacement clients were started.
func (s *Supervisor) Rejoins() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejoins
}

func (s *Supervisor) Current() *presence.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
