package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"kiosk-sync/internal/database/migrations"
)

// Open opens and configures the embedded store. path can be a file path or
// ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and it keeps
	// ":memory:" databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	// SQLite defaults foreign keys to OFF for backward compatibility
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	// WAL lets the push handlers and the periodic tasks write concurrently
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return db, nil
}

// Prepare brings the schema to the latest version. With destructive set,
// a failed migration drops the schema and recreates it from scratch
// instead of failing; intended for non-production builds only.
func Prepare(db *sql.DB, destructive bool) error {
	err := migrations.MigrateUp(db)
	if err == nil {
		return nil
	}
	if !destructive {
		return err
	}
	if dropErr := migrations.DropAll(db); dropErr != nil {
		return fmt.Errorf("destructive reset failed: %w (after migration error: %v)", dropErr, err)
	}
	return migrations.MigrateUp(db)
}
