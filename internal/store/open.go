package store

import (
	"fmt"
	"log"

	"github.com/speedfriending/backend/internal/config"
	"github.com/speedfriending/backend/internal/database"
	"github.com/speedfriending/backend/internal/migrations"
)

// Open returns the record store selected by DB_DRIVER. SQL stores are
// migrated before use when MIGRATE_ON_START is set.
func Open(cfg *config.Config) (Store, error) {
	var dsn string
	switch cfg.DBDriver {
	case "", "memory":
		log.Println("[DB] Using in-memory record store; data is lost on restart")
		return NewMemoryStore(), nil
	case "postgres":
		dsn = cfg.DatabaseURL
	case "sqlite", "sqlite3":
		dsn = cfg.SQLiteFile
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := database.Connect(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	if cfg.MigrateOnStart {
		if err := migrations.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	log.Printf("[DB] Connected to %s record store", db.DriverName())
	return NewSQLStore(db), nil
}
