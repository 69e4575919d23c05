package storage

import (
	"context"
	"fmt"

	"github.com/dkeye/Presence/internal/storage/postgres"
	"github.com/dkeye/Presence/internal/storage/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the user store for driver. An empty driver means memory.
func Open(ctx context.Context, driver, dsn string) (UserStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
