// Package database opens the sqlite3 handle backing the progress tracker's
// resume bookkeeping (internal/progress). It owns nothing about the run's
// domain schema; progress.Tracker creates and queries its own tables against
// the *sql.DB this package hands back.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection.
type DB struct {
	*sql.DB
	path string
}

// GetSQLDB returns the underlying SQL database connection.
func (db *DB) GetSQLDB() *sql.DB {
	return db.DB
}

// Initialize opens path as a sqlite3 database, applying the same WAL/cache
// pragma set the teacher tuned for high write volume, and returns a handle
// ready for a caller's own schema.
func Initialize(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",     // Write-ahead logging
		"PRAGMA synchronous = NORMAL",   // Balanced safety/speed
		"PRAGMA cache_size = 100000",    // ~400MB cache
		"PRAGMA temp_store = MEMORY",    // Use memory for temp tables
		"PRAGMA mmap_size = 1073741824", // 1GB memory mapping
		"PRAGMA busy_timeout = 10000",   // 10 second timeout
		"PRAGMA foreign_keys = OFF",     // single-writer resume bookkeeping, no FKs
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		DB:   db,
		path: path,
	}, nil
}
