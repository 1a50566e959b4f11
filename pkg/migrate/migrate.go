// Package migrate applies versioned SQL migrations, one transaction per migration.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest is the MigrateTo target that means "every known migration".
const Latest = -1

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider defines how migrations are loaded and managed
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Status summarizes where a database stands relative to the known migrations.
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

// step is one migration in a plan, applied in one direction, leaving the
// database at version after.
type step struct {
	migration Migration
	up        bool
	after     int
}

func (s step) direction() string {
	if s.up {
		return "up"
	}
	return "down"
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown reverts migrations until the database is at targetVersion,
// which must be below the current version.
func (m *Migrator) MigrateDown(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}
	if targetVersion < 0 || targetVersion >= current {
		return fmt.Errorf("target version %d must be between 0 and current version %d", targetVersion, current)
	}
	return m.MigrateTo(targetVersion)
}

// MigrateTo runs migrations up or down to reach targetVersion. Every step is
// checked before the first one runs, so a missing down script fails the whole
// request instead of leaving the schema half reverted.
func (m *Migrator) MigrateTo(targetVersion int) error {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return err
	}

	steps, err := plan(migrations, current, targetVersion)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if err := m.execute(s); err != nil {
			return fmt.Errorf("migration %d %s failed: %w", s.migration.Version, s.direction(), err)
		}
	}
	return nil
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	status, err := m.Status()
	if err != nil {
		return nil, err
	}
	return status.Pending, nil
}

// Status reports the current and latest versions and the migrations between them.
func (m *Migrator) Status() (Status, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return Status{}, err
	}

	migrations, err := m.sortedMigrations()
	if err != nil {
		return Status{}, err
	}

	status := Status{Current: current, Latest: current}
	for _, migration := range migrations {
		if migration.Version > current {
			status.Pending = append(status.Pending, migration)
		}
	}
	if n := len(migrations); n > 0 && migrations[n-1].Version > current {
		status.Latest = migrations[n-1].Version
	}
	return status, nil
}

// SetVersion allows manually setting the migration version (use with caution)
func (m *Migrator) SetVersion(version int) error {
	return m.provider.SetVersion(m.db, version)
}

func (m *Migrator) sortedMigrations() ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", migrations[i].Version)
		}
	}
	return migrations, nil
}

// plan lists the steps that move a database from current to target over the
// ascending migrations. A target of Latest means the highest known version.
func plan(migrations []Migration, current, target int) ([]step, error) {
	if target == Latest {
		target = current
		if n := len(migrations); n > 0 && migrations[n-1].Version > current {
			target = migrations[n-1].Version
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("invalid target version %d", target)
	}

	var steps []step
	if target >= current {
		for _, migration := range migrations {
			if migration.Version <= current || migration.Version > target {
				continue
			}
			if migration.Up == "" {
				return nil, fmt.Errorf("migration %d has no up SQL", migration.Version)
			}
			steps = append(steps, step{migration: migration, up: true, after: migration.Version})
		}
		return steps, nil
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version > current || migration.Version <= target {
			continue
		}
		if migration.Down == "" {
			return nil, fmt.Errorf("migration %d has no down SQL", migration.Version)
		}
		after := 0
		if i > 0 {
			after = migrations[i-1].Version
		}
		if after < target {
			after = target
		}
		steps = append(steps, step{migration: migration, up: false, after: after})
	}
	return steps, nil
}

func (m *Migrator) execute(s step) error {
	script := s.migration.Up
	if !s.up {
		script = s.migration.Down
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if err := m.provider.SetVersion(tx, s.after); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infof("migration %d (%s) %s, schema now at version %d", s.migration.Version, s.migration.Name, s.direction(), s.after)
	return nil
}
