// Package sqlite stores segmented nights in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chrissnell/nocturne/internal/nights"
	"github.com/chrissnell/nocturne/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationTable records the applied schema version
const MigrationTable = "nocturne_migrations"

// Store is a SQLite-backed night store
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Migrations returns the embedded schema migrations
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // the embedded directory always exists
	}
	return sub
}

// New opens the database at path and brings its schema up to date
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	// SQLite allows a single writer; serialize access through one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to SQLite database %s: %w", path, err)
	}

	provider, err := migrate.NewFSProvider(Migrations(), MigrationTable, migrate.DriverSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.NewMigrator(db, provider, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database %s: %w", path, err)
	}

	logger.Infof("opened SQLite night store at %s", path)
	return &Store{db: db, logger: logger}, nil
}

// SaveNights stores nights under track in one transaction and returns their IDs.
// A night already stored for the same track, boundary key and first fix is replaced.
func (s *Store) SaveNights(ctx context.Context, track string, ns []nights.Night) ([]string, error) {
	if track == "" {
		return nil, nights.ErrEmptyTrack
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ids := make([]string, 0, len(ns))

	for _, n := range ns {
		if err := deleteNight(ctx, tx, track, n); err != nil {
			return nil, err
		}

		id := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO nights (id, track, boundary_key, boundary_unix, start_unix, fix_count, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, track, n.BoundaryKey.Format(time.RFC3339), n.BoundaryKey.Unix(), startUnix(n), len(n.Fixes), now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert night %s: %w", n.BoundaryKey.Format(time.RFC3339), err)
		}

		for seq, f := range n.Fixes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO night_fixes (night_id, seq, timestamp, latitude, longitude, is_before_sunrise, is_daytime, is_after_sunset)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, seq, f.Timestamp.Format(time.RFC3339Nano), f.Latitude, f.Longitude,
				f.IsBeforeSunrise, f.IsDaytime, f.IsAfterSunset)
			if err != nil {
				return nil, fmt.Errorf("failed to insert fix %d of night %s: %w", seq, id, err)
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit nights: %w", err)
	}

	s.logger.Debugf("saved %d nights for track %s", len(ids), track)
	return ids, nil
}

// startUnix is the night's first fix in Unix seconds, 0 for an empty night
func startUnix(n nights.Night) int64 {
	start := n.Start()
	if start.IsZero() {
		return 0
	}
	return start.Unix()
}

func deleteNight(ctx context.Context, tx *sql.Tx, track string, n nights.Night) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM nights WHERE track = ? AND boundary_unix = ? AND start_unix = ?`,
		track, n.BoundaryKey.Unix(), startUnix(n)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up existing night: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM night_fixes WHERE night_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fixes of night %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nights WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete night %s: %w", id, err)
	}
	return nil
}

// ListNights returns the nights stored for track ordered by boundary key, then first fix
func (s *Store) ListNights(ctx context.Context, track string) ([]nights.StoredNight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, boundary_key, created_at FROM nights WHERE track = ? ORDER BY boundary_unix, start_unix`, track)
	if err != nil {
		return nil, fmt.Errorf("failed to query nights: %w", err)
	}

	stored := []nights.StoredNight{}
	for rows.Next() {
		var id, key, created string
		if err := rows.Scan(&id, &key, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan night: %w", err)
		}

		sn := nights.StoredNight{ID: id, Track: track}
		if sn.BoundaryKey, err = time.Parse(time.RFC3339, key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("night %s has invalid boundary key %q: %w", id, key, err)
		}
		if sn.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("night %s has invalid creation time %q: %w", id, created, err)
		}
		stored = append(stored, sn)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read nights: %w", err)
	}
	rows.Close()

	// The single connection is free again once the night rows are closed
	for i := range stored {
		fixes, err := s.loadFixes(ctx, stored[i].ID, stored[i].BoundaryKey)
		if err != nil {
			return nil, err
		}
		stored[i].Fixes = fixes
	}

	return stored, nil
}

func (s *Store) loadFixes(ctx context.Context, nightID string, key time.Time) ([]nights.ClassifiedFix, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, latitude, longitude, is_before_sunrise, is_daytime, is_after_sunset
		 FROM night_fixes WHERE night_id = ? ORDER BY seq`, nightID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixes of night %s: %w", nightID, err)
	}
	defer rows.Close()

	fixes := []nights.ClassifiedFix{}
	for rows.Next() {
		var ts string
		f := nights.ClassifiedFix{BoundaryKey: key}
		if err := rows.Scan(&ts, &f.Latitude, &f.Longitude, &f.IsBeforeSunrise, &f.IsDaytime, &f.IsAfterSunset); err != nil {
			return nil, fmt.Errorf("failed to scan fix of night %s: %w", nightID, err)
		}
		if f.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("fix of night %s has invalid timestamp %q: %w", nightID, ts, err)
		}
		fixes = append(fixes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixes of night %s: %w", nightID, err)
	}
	return fixes, nil
}

// Ping checks that the database file is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
