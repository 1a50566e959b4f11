// Package storage defines the night store interface and selects its backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/internal/storage/sqlite"
	"github.com/chrissnell/nocturne/internal/storage/timescaledb"
	"github.com/chrissnell/nocturne/pkg/config"
)

// NightStore persists segmented nights per track
type NightStore interface {
	SaveNights(ctx context.Context, track string, ns []nights.Night) ([]string, error)
	ListNights(ctx context.Context, track string) ([]nights.StoredNight, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ NightStore = (*sqlite.Store)(nil)
	_ NightStore = (*timescaledb.Store)(nil)
)

// New opens the backend named in c. It returns a nil store and no error when no
// backend is configured.
func New(ctx context.Context, c config.StorageData, logger *zap.Logger) (NightStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch c.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendSQLite:
		store, err := sqlite.New(ctx, c.SQLitePath, logger.Sugar())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendTimescaleDB:
		store, err := timescaledb.New(ctx, c.TimescaleDBConnectionString, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
}
