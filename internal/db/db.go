// Package db manages the local SQLite mirror of schools, bins and snapshots.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := db.FixLegacyTimeFormats(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to fix legacy time formats: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000", // 16MB cache
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createSchoolsTable(); err != nil {
		return err
	}
	if err := db.createBinsTable(); err != nil {
		return err
	}
	return db.createSnapshotsTable()
}

func (db *DB) createSchoolsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schools (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		synced_at TEXT NOT NULL
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createBinsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS bins (
		id INTEGER PRIMARY KEY,
		school_id INTEGER NOT NULL REFERENCES schools(id) ON DELETE CASCADE,
		ip_address TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		current_score INTEGER NOT NULL DEFAULT 0,
		synced_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bins_school ON bins(school_id);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createSnapshotsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY,
		bin_id INTEGER NOT NULL REFERENCES bins(id) ON DELETE CASCADE,
		timestamp TEXT NOT NULL,
		food_trays INTEGER NOT NULL DEFAULT 0,
		unfinished_burgers INTEGER NOT NULL DEFAULT 0,
		milk_cartons INTEGER NOT NULL DEFAULT 0,
		vegetable_portions INTEGER NOT NULL DEFAULT 0,
		fruit_portions INTEGER NOT NULL DEFAULT 0,
		percent_hundred_surface_area REAL NOT NULL DEFAULT 0,
		food_score INTEGER NOT NULL DEFAULT 0,
		is_empty INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_bin_time ON snapshots(bin_id, timestamp);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
