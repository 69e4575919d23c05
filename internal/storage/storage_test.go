package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIssuesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	a, err := s.CreateUser(ctx)
	require.NoError(t, err)
	b, err := s.CreateUser(ctx)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, string(a), 36)

	ok, err := s.UserExists(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UserExists(ctx, "nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().CreateUser(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "")
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	id, err := s.CreateUser(ctx)
	require.NoError(t, err)
	ok, err := s.UserExists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "redis", "")
	require.ErrorContains(t, err, "unknown storage driver")
}

func TestOpenFailureReturnsNilStore(t *testing.T) {
	for _, dsn := range []string{"", filepath.Join(t.TempDir(), "missing", "users.db")} {
		s, err := Open(context.Background(), DriverSQLite, dsn)
		require.Error(t, err)
		// require.Nil would also accept a typed nil inside the interface.
		require.True(t, s == nil, "dsn %q", dsn)
	}
}
