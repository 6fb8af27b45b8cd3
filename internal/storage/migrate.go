package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema for the given dialect up to date. source is
// the SQLite file path or the Postgres connection string.
func RunMigrations(d Dialect, source string) error {
	// Separate handle: closing the migrate instance closes its database.
	var (
		driverName string
		openName   string
		dir        string
	)
	switch d.Name {
	case SQLite.Name:
		driverName, openName, dir = "sqlite", "sqlite", "migrations/sqlite"
	case Postgres.Name:
		driverName, openName, dir = "pgx5", "pgx", "migrations/postgres"
	default:
		return fmt.Errorf("unsupported dialect: %s", d.Name)
	}

	migrateDB, err := sql.Open(openName, source)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var driver database.Driver
	switch d.Name {
	case SQLite.Name:
		driver, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
	default:
		driver, err = pgxmigrate.WithInstance(migrateDB, &pgxmigrate.Config{})
	}
	if err != nil {
		return fmt.Errorf("create %s driver: %w", driverName, err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
