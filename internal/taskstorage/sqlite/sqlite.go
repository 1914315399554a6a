// Package sqlite implements taskstorage.Backend on a local SQLite database.
// The snapshot is kept as one row of the snapshots table, so the stored
// document is byte-for-byte what the JSON file backend would write.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskgraph/internal/taskstorage"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// snapshotName is the row key for the task snapshot.
const snapshotName = "tasks"

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    name       TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store implements taskstorage.Backend using SQLite in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema.
// The caller is responsible for calling Close.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}

	// One connection: SQLite has a single writer, and per-connection
	// PRAGMAs would otherwise need repeating for every pooled connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Read returns the stored snapshot.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE name = ?", snapshotName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskstorage.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read snapshot: %w", err)
	}
	return []byte(data), nil
}

// Write upserts the snapshot row.
func (s *Store) Write(ctx context.Context, data []byte) error {
	const q = `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, snapshotName, string(data)); err != nil {
		return fmt.Errorf("sqlite: write snapshot: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }
