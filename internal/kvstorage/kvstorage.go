// Package kvstorage defines a small key-value storage interface for
// documents that live beside the task snapshot but are not tasks, such as
// display settings.
package kvstorage

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned by Set with FailIfExists when the key
	// is already present.
	ErrAlreadyExists = errors.New("key already exists")

	// ErrReservedTable is returned when a table name collides with a file
	// the task backends own.
	ErrReservedTable = errors.New("reserved table name")
)

// KVStore stores opaque values under string keys within one named table.
type KVStore interface {
	// Set stores value under key, subject to opts.Exists.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) error

	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key, or returns ErrKeyNotFound.
	Delete(ctx context.Context, key string) error
}

// ExistsPolicy controls how Set treats the key's current presence.
type ExistsPolicy int

const (
	// AnyExists writes whether or not the key exists.
	AnyExists ExistsPolicy = iota
	// FailIfExists refuses to overwrite an existing key.
	FailIfExists
)

// SetOptions controls Set behavior.
type SetOptions struct {
	Exists ExistsPolicy
}

// ReservedTableNames are the entries of the data directory written by the
// task backends and config. A table may not shadow them.
var ReservedTableNames = []string{"tasks.json", "tasks.json.lock", "tasks.db", "config.yaml"}

// ValidateTableName checks that a table name is non-empty and not reserved.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if slices.Contains(ReservedTableNames, name) {
		return fmt.Errorf("table name %q is reserved: %w", name, ErrReservedTable)
	}
	return nil
}
