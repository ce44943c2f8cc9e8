package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect establishes a connection to PostgreSQL ("postgres") or SQLite ("sqlite")
func Connect(driver, dsn string) (*sqlx.DB, error) {
	driverName := driver
	switch driver {
	case "postgres":
	case "sqlite", "sqlite3":
		driverName = "sqlite3"
		dsn = dsn + "?_foreign_keys=on&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if driverName == "sqlite3" {
		// SQLite allows a single writer; serialize through one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
