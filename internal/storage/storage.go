// Package storage keeps the user ids the coordinator has issued.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/google/uuid"
)

// UserStore issues and remembers user ids.
type UserStore interface {
	CreateUser(ctx context.Context) (domain.UserID, error)
	UserExists(ctx context.Context, id domain.UserID) (bool, error)
	Close() error
}

// MemoryStore is a UserStore that forgets everything on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[domain.UserID]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[domain.UserID]time.Time)}
}

func (s *MemoryStore) CreateUser(ctx context.Context) (domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := domain.UserID(uuid.NewString())
	s.mu.Lock()
	s.users[id] = time.Now().UTC()
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) UserExists(ctx context.Context, id domain.UserID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *MemoryStore) Close() error { return nil }
