package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Supported drivers for the version table dialect
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultMigrationTable tracks applied versions unless a provider names another table
const DefaultMigrationTable = "schema_migrations"

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FileProvider loads migrations from a filesystem, either a directory on disk or
// an embedded tree.
type FileProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string
}

// NewFileProvider creates a migration provider reading from a directory on disk
func NewFileProvider(dir string, migrationTable string, dbDriver string) (*FileProvider, error) {
	return NewFSProvider(os.DirFS(dir), migrationTable, dbDriver)
}

// NewFSProvider creates a migration provider reading the root of fsys
func NewFSProvider(fsys fs.FS, migrationTable string, dbDriver string) (*FileProvider, error) {
	if migrationTable == "" {
		migrationTable = DefaultMigrationTable
	}
	if !tableNameRegex.MatchString(migrationTable) {
		return nil, fmt.Errorf("invalid migration table name %q", migrationTable)
	}
	if dbDriver == "" {
		dbDriver = DriverSQLite
	}
	if dbDriver != DriverSQLite && dbDriver != DriverPostgres {
		return nil, fmt.Errorf("unsupported migration driver %q", dbDriver)
	}

	return &FileProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}, nil
}

// GetMigrations loads all migrations, sorted by version
func (fp *FileProvider) GetMigrations() ([]Migration, error) {
	migrationFiles := make(map[int]*Migration)

	err := fs.WalkDir(fp.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFileRegex.FindStringSubmatch(d.Name())
		if matches == nil {
			return nil
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid version number in file %s: %w", d.Name(), err)
		}
		if version < 1 {
			return fmt.Errorf("migration %s: versions start at 1", d.Name())
		}

		content, err := fs.ReadFile(fp.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m, ok := migrationFiles[version]
		if !ok {
			m = &Migration{
				Version: version,
				Name:    strings.ReplaceAll(matches[2], "_", " "),
			}
			migrationFiles[version] = m
		}

		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	migrations := make([]Migration, 0, len(migrationFiles))
	for _, migration := range migrationFiles {
		migrations = append(migrations, *migration)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (fp *FileProvider) CreateMigrationTable(db *sql.DB) error {
	timestampType := "DATETIME"
	if fp.dbDriver == DriverPostgres {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, fp.migrationTable, timestampType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FileProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", fp.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one. Versions above it are forgotten
// so that rolling back lowers MAX(version).
func (fp *FileProvider) SetVersion(db DB, version int) error {
	placeholder := "?"
	if fp.dbDriver == DriverPostgres {
		placeholder = "$1"
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE version > %s", fp.migrationTable, placeholder)
	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	if fp.dbDriver == DriverPostgres {
		query = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, fp.migrationTable)
	} else {
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, fp.migrationTable)
	}

	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
