package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

const migrationsTable = "schema_migrations_migrate"

// RunMigrations applies the embedded migrations for the connected driver.
// The schema is settled once here; columns are never inspected at request time.
func RunMigrations(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch db.DriverName() {
	case "postgres":
		dir = "postgres"
		driver, err = pg.WithInstance(db.DB, &pg.Config{MigrationsTable: migrationsTable})
	case "sqlite3":
		dir = "sqlite"
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{MigrationsTable: migrationsTable})
	default:
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("[MIGRATE] Migrations applied (driver=%s version=%d dirty=%v)", db.DriverName(), version, dirty)
	return nil
}
