package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Needs a live server: PRESENCE_TEST_POSTGRES_DSN=postgres://... go test ./...
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PRESENCE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRESENCE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.CreateUser(ctx)
	require.NoError(t, err)

	ok, err := s.UserExists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UserExists(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.False(t, ok)
}
