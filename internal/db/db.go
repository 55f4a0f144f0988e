// Package db stores smoke-test run history in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open applies pending migrations and connects to the database at dbPath.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return Connect(ctx, dbPath)
}

// Connect opens a SQLite database at the given path.
// Creates the parent directory if needed.
func Connect(ctx context.Context, dbPath string) (*DB, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite works best with a single connection for writes
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db: db}, nil
}

func open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode, busy timeout and enforced foreign keys
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (d *DB) Close() {
	d.db.Close()
}
