package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver registered as "pgx"
	_ "github.com/lib/pq"              // PostgreSQL driver registered as "postgres"
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/chrissnell/nocturne/internal/log"
	"github.com/chrissnell/nocturne/internal/storage/sqlite"
	"github.com/chrissnell/nocturne/pkg/migrate"
)

func main() {
	var (
		dbDriver       = flag.String("driver", "sqlite", "Database driver (sqlite, postgres, pgx)")
		dbDSN          = flag.String("dsn", "", "Database connection string")
		migrationDir   = flag.String("dir", "", "Migration directory (default: the embedded night store schema)")
		migrationTable = flag.String("table", sqlite.MigrationTable, "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		debug          = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(*debug, ""); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*dbDriver, *dbDSN, *migrationDir, *migrationTable, *command, *targetVersion); err != nil {
		log.Errorf("Migration command failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(dbDriver, dbDSN, migrationDir, migrationTable, command, targetVersion string) error {
	dialect := migrate.DriverSQLite
	switch dbDriver {
	case "sqlite":
	case "postgres", "pgx":
		dialect = migrate.DriverPostgres
	default:
		return fmt.Errorf("unsupported driver %q", dbDriver)
	}

	var migrations fs.FS
	if migrationDir != "" {
		migrations = os.DirFS(migrationDir)
	} else if dialect == migrate.DriverSQLite {
		migrations = sqlite.Migrations()
	} else {
		return fmt.Errorf("-dir is required for driver %q", dbDriver)
	}

	// Open database connection
	db, err := sql.Open(dbDriver, dbDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	provider, err := migrate.NewFSProvider(migrations, migrationTable, dialect)
	if err != nil {
		return err
	}
	migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

	switch command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		if targetVersion == "" {
			return fmt.Errorf("-target flag is required for %s command", command)
		}
		target, convErr := strconv.Atoi(targetVersion)
		if convErr != nil {
			return fmt.Errorf("invalid target version: %w", convErr)
		}
		if command == "down" {
			err = migrator.MigrateDown(target)
		} else {
			err = migrator.MigrateTo(target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			return fmt.Errorf("failed to get current version: %w", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return nil
	case "status":
		err = showStatus(migrator)
	default:
		showHelp()
		return fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		return err
	}

	fmt.Println("Migration completed successfully")
	return nil
}

func showStatus(migrator *migrate.Migrator) error {
	status, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("Current version: %d\n", status.Current)
	fmt.Printf("Latest version: %d\n", status.Latest)
	fmt.Printf("Pending migrations: %d\n", len(status.Pending))

	if len(status.Pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range status.Pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Night Store Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Database driver: sqlite, postgres or pgx (default: sqlite)")
	fmt.Println("  -dsn string        Database connection string (required)")
	fmt.Println("  -dir string        Migration directory (default: embedded SQLite night store schema)")
	fmt.Println("  -table string      Migration table name (default: nocturne_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -debug             Turn on debugging output")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn nights.db -command up")
	fmt.Println("  migrate -dsn nights.db -command down -target 0")
	fmt.Println("  migrate -driver pgx -dsn postgres://localhost/nocturne -dir ./migrations -command status")
}
