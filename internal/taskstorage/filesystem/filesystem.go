// Package filesystem implements taskstorage.Backend as a single JSON file.
// The whole snapshot lives in <dir>/tasks.json and is replaced atomically
// on every write (temp file + rename) under an flock on tasks.json.lock.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"taskgraph/internal/taskstorage"

	"github.com/google/uuid"
)

// DefaultFileName is the snapshot file name inside the data directory.
const DefaultFileName = "tasks.json"

// FilesystemStorage implements taskstorage.Backend using one JSON file.
type FilesystemStorage struct {
	path string // absolute path to the snapshot file
}

// Option configures a FilesystemStorage instance.
type Option func(*FilesystemStorage)

// WithFileName overrides the snapshot file name (default tasks.json).
// Relative names are resolved against the data directory.
func WithFileName(name string) Option {
	return func(fs *FilesystemStorage) {
		if name == "" {
			return
		}
		if filepath.IsAbs(name) {
			fs.path = name
			return
		}
		fs.path = filepath.Join(filepath.Dir(fs.path), name)
	}
}

// New creates a FilesystemStorage that keeps its snapshot in dir.
func New(dir string, opts ...Option) *FilesystemStorage {
	fs := &FilesystemStorage{
		path: filepath.Join(dir, DefaultFileName),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Path returns the snapshot file path.
func (fs *FilesystemStorage) Path() string {
	return fs.path
}

// Init creates the data directory and removes temp files left behind by a
// writer that crashed between creating the temp file and renaming it.
func (fs *FilesystemStorage) Init(ctx context.Context) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fs.cleanupTempFiles()
	return nil
}

// cleanupTempFiles is best effort: a leftover temp file is never the
// authoritative snapshot, since the rename never happened.
func (fs *FilesystemStorage) cleanupTempFiles() {
	dir := filepath.Dir(fs.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	prefix := filepath.Base(fs.path) + ".tmp."
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}

// Read returns the current snapshot.
func (fs *FilesystemStorage) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, taskstorage.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write replaces the snapshot. Other processes writing the same file are
// serialized by the lock file.
func (fs *FilesystemStorage) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, err := fs.acquireLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", fs.path, err)
	}
	defer lock.release()

	return atomicWrite(fs.path, data)
}

// Close is a no-op; the file backend holds no open handles between calls.
func (fs *FilesystemStorage) Close() error {
	return nil
}

func (fs *FilesystemStorage) lockPath() string {
	return fs.path + ".lock"
}

// fileLock holds an flock on the snapshot's lock file.
type fileLock struct {
	file *os.File
}

// release unlocks and closes the lock file. The file itself is left in
// place; removing it would race with a process blocked on the old inode.
func (l *fileLock) release() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
}

// acquireLock gets an exclusive flock on the lock file.
func (fs *FilesystemStorage) acquireLock() (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(fs.lockPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{file: f}, nil
}

// atomicWrite writes data to a uniquely named temp file, fsyncs it, and
// renames it over path.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp." + uuid.NewString()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
