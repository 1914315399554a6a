// Package filesystem implements kvstorage.KVStore on the local filesystem.
// Each table is a directory under the data directory and each key is a
// JSON file within it.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"taskgraph/internal/kvstorage"

	"github.com/google/uuid"
)

const keySuffix = ".json"

// Store implements kvstorage.KVStore for one table directory.
type Store struct {
	dir string
}

// New returns a store for table under root. It fails if the table name is
// empty or reserved.
func New(root, table string) (*Store, error) {
	if err := kvstorage.ValidateTableName(table); err != nil {
		return nil, err
	}
	return &Store{dir: filepath.Join(root, table)}, nil
}

// Init creates the table directory if it doesn't exist.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}
	return nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte, opts kvstorage.SetOptions) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.keyPath(key)

	if opts.Exists == kvstorage.FailIfExists {
		return createExclusive(path, key, value)
	}
	return atomicWrite(path, value)
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("key %q: %w", key, kvstorage.ErrKeyNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := os.Remove(s.keyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("key %q: %w", key, kvstorage.ErrKeyNotFound)
	}
	return err
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key+keySuffix)
}

// validateKey rejects empty keys and keys that would escape the table.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("key %q contains a path separator", key)
	}
	return nil
}

// createExclusive writes data to path only if path does not exist yet. The
// value is staged in a temp file and linked into place, so a reader never
// sees a partial document.
func createExclusive(path, key string, data []byte) error {
	tmp := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("key %q: %w", key, kvstorage.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// atomicWrite writes data beside path and renames it into place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
