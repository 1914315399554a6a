// Package postgres implements taskstorage.Backend on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"taskgraph/internal/taskstorage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSnapshotName is the row key used when none is configured.
const DefaultSnapshotName = "tasks"

// Store keeps the task snapshot as one JSONB row of task_snapshots.
type Store struct {
	pool *pgxpool.Pool
	name string
}

// Open connects to dsn and ensures the snapshot table exists.
// name selects the row, so several task sets can share one database.
func Open(ctx context.Context, dsn, name string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if name == "" {
		name = DefaultSnapshotName
	}
	s := &Store{pool: pool, name: name}
	if err := s.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureTable creates the task_snapshots table if it doesn't exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_snapshots (
			name       TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}
	return nil
}

// Read returns the stored snapshot.
func (s *Store) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data::text FROM task_snapshots WHERE name = $1`, s.name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, taskstorage.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: read snapshot: %w", err)
	}
	return data, nil
}

// Write upserts the snapshot row.
func (s *Store) Write(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_snapshots (name, data, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		s.name, string(data))
	if err != nil {
		return fmt.Errorf("postgres: write snapshot: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
