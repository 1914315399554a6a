// Package taskservice is the record graph engine. It owns the task
// records, keeps dependency and hierarchy edges symmetric, and flushes the
// whole snapshot through a taskstorage.Backend after every mutation.
//
// Engine should always be used in place of a backend directly: backends
// store an opaque document and enforce none of the relation invariants.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskgraph/internal/taskstorage"
)

// HierarchyPolicy decides what happens to parent/subtask links when a task
// is deleted.
type HierarchyPolicy string

const (
	// HierarchyDetach clears the deleted task's parent and subtask links
	// on both sides.
	HierarchyDetach HierarchyPolicy = "detach"
	// HierarchyKeep leaves hierarchy links pointing at the tombstone.
	HierarchyKeep HierarchyPolicy = "keep"
)

// Durability decides what a failed flush means for the caller.
type Durability string

const (
	// DurabilityStrict rolls the mutation back and returns ErrPersistence.
	DurabilityStrict Durability = "strict"
	// DurabilityLenient logs the failure and keeps the mutation.
	DurabilityLenient Durability = "lenient"
)

// ParseHierarchyPolicy validates a configured policy name.
func ParseHierarchyPolicy(s string) (HierarchyPolicy, error) {
	switch p := HierarchyPolicy(s); p {
	case HierarchyDetach, HierarchyKeep:
		return p, nil
	case "":
		return HierarchyDetach, nil
	}
	return "", fmt.Errorf("invalid hierarchy policy %q (must be %q or %q)", s, HierarchyDetach, HierarchyKeep)
}

// ParseDurability validates a configured durability name.
func ParseDurability(s string) (Durability, error) {
	switch d := Durability(s); d {
	case DurabilityStrict, DurabilityLenient:
		return d, nil
	case "":
		return DurabilityStrict, nil
	}
	return "", fmt.Errorf("invalid durability %q (must be %q or %q)", s, DurabilityStrict, DurabilityLenient)
}

// Engine holds the task records in creation order; a task's id is its
// index. All methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	tasks   []*taskstorage.Task
	backend taskstorage.Backend

	hierarchy  HierarchyPolicy
	durability Durability
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHierarchyPolicy sets the delete-time hierarchy policy.
func WithHierarchyPolicy(p HierarchyPolicy) Option {
	return func(e *Engine) { e.hierarchy = p }
}

// WithDurability sets the flush failure policy.
func WithDurability(d Durability) Option {
	return func(e *Engine) { e.durability = d }
}

// WithLogger sets the logger used for migrations, reloads and lenient
// write failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an empty engine persisting through backend. Call Load to
// populate it from the backend's current snapshot.
func New(backend taskstorage.Backend, opts ...Option) *Engine {
	e := &Engine{
		tasks:      []*taskstorage.Task{},
		backend:    backend,
		hierarchy:  HierarchyDetach,
		durability: DurabilityStrict,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the in-memory records with the backend's snapshot. A
// backend that has never been written yields an empty store. Records that
// needed schema migration are logged and the normalized snapshot is
// written back. Under lenient durability a failed write-back is only
// logged.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks, report, err := e.read(ctx)
	if err != nil {
		return err
	}
	e.tasks = tasks

	if !report.Migrated() {
		return nil
	}
	for _, rec := range report.Records {
		e.logger.Info("migrated task record",
			"id", rec.ID,
			"from_version", rec.Version,
			"filled", rec.Filled,
			"converted", rec.Converted,
			"assigned_id", rec.AssignedID)
	}
	if err := e.write(ctx); err != nil {
		if e.durability == DurabilityLenient {
			e.logger.Warn("failed to write migrated snapshot; continuing with migrated records", "error", err)
			return nil
		}
		return fmt.Errorf("writing migrated snapshot: %w", err)
	}
	return nil
}

// Reload re-reads the backend after an external change. Unlike Load it
// never writes; a later mutation persists any migrated fields.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks, _, err := e.read(ctx)
	if err != nil {
		return err
	}
	e.tasks = tasks
	e.logger.Debug("reloaded tasks", "count", len(tasks))
	return nil
}

func (e *Engine) read(ctx context.Context) ([]*taskstorage.Task, taskstorage.MigrationReport, error) {
	data, err := e.backend.Read(ctx)
	if errors.Is(err, taskstorage.ErrNoSnapshot) {
		return []*taskstorage.Task{}, taskstorage.MigrationReport{}, nil
	}
	if err != nil {
		return nil, taskstorage.MigrationReport{}, fmt.Errorf("reading snapshot: %w", err)
	}
	tasks, report, err := taskstorage.Decode(data)
	if err != nil {
		return nil, report, err
	}
	return tasks, report, nil
}

func (e *Engine) write(ctx context.Context) error {
	data, err := taskstorage.Encode(e.tasks)
	if err != nil {
		return fmt.Errorf("%w: %w", taskstorage.ErrPersistence, err)
	}
	if err := e.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", taskstorage.ErrPersistence, err)
	}
	return nil
}

// mutate runs fn against the live records and flushes the result. If fn
// fails nothing changes. If the flush fails under strict durability the
// records are restored and the persistence error is returned. Caller must
// hold e.mu.
func (e *Engine) mutate(ctx context.Context, fn func() error) error {
	saved := cloneAll(e.tasks)
	if err := fn(); err != nil {
		e.tasks = saved
		return err
	}
	if err := e.write(ctx); err != nil {
		if e.durability == DurabilityLenient {
			e.logger.Warn("failed to persist tasks; keeping in-memory change", "error", err)
			return nil
		}
		e.tasks = saved
		return err
	}
	return nil
}

// lookup returns the live record for id. Caller must hold e.mu.
func (e *Engine) lookup(id int) (*taskstorage.Task, error) {
	if id < 0 || id >= len(e.tasks) {
		return nil, fmt.Errorf("task %d: %w", id, taskstorage.ErrNotFound)
	}
	return e.tasks[id], nil
}

// Snapshot returns a deep copy of every record, tombstones included.
func (e *Engine) Snapshot() []*taskstorage.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.tasks)
}

// Len returns the number of records ever created.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

func cloneAll(tasks []*taskstorage.Task) []*taskstorage.Task {
	out := make([]*taskstorage.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
