// Package taskstorage defines the task record shape, the sentinel errors
// shared by the engine and its callers, and the snapshot backend interface.
// All storage backends (JSON file, SQLite, PostgreSQL) implement Backend.
package taskstorage

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Sentinel errors returned by the engine. Callers compare with errors.Is;
// the engine wraps them with the task id.
var (
	ErrNotFound        = errors.New("task not found")
	ErrAlreadyFinished = errors.New("task already finished")
	ErrAlreadyDeleted  = errors.New("task already deleted")
	ErrDuplicateEdge   = errors.New("dependency already exists")
	ErrEdgeNotFound    = errors.New("dependency not found")
	ErrAlreadyChild    = errors.New("task already has a parent")
	ErrNotAChild       = errors.New("task is not a subtask of this parent")
	ErrTagNotFound     = errors.New("tag not found")
	ErrSelfRelation    = errors.New("a task cannot be related to itself")
	ErrPersistence     = errors.New("persisting snapshot failed")
)

// Gateway errors returned by backends and Decode.
var (
	ErrNoSnapshot      = errors.New("no snapshot has been written")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// conflicts are the state-conflict failures: the request was well formed
// but the current state does not allow it.
var conflicts = []error{
	ErrAlreadyFinished,
	ErrAlreadyDeleted,
	ErrDuplicateEdge,
	ErrEdgeNotFound,
	ErrAlreadyChild,
	ErrNotAChild,
	ErrTagNotFound,
	ErrSelfRelation,
}

// IsConflict reports whether err is one of the state-conflict errors.
func IsConflict(err error) bool {
	for _, c := range conflicts {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// Task is the single record type. Relation fields hold task ids.
type Task struct {
	ID           int        `json:"id"`
	Description  string     `json:"description"`
	Finished     bool       `json:"finished"`
	TimeCreated  *time.Time `json:"time_created"`
	TimeFinished *time.Time `json:"time_finished"`
	Tags         []string   `json:"tags"`

	// Dependency relation: Requirements must precede this task,
	// Dependents are the tasks that list this one as a requirement.
	Requirements []int `json:"requirements"`
	Dependents   []int `json:"dependents"`

	// Hierarchy relation.
	Parent   *int  `json:"parent"`
	Subtasks []int `json:"subtasks"`

	Pinned  bool `json:"pinned"`
	Deleted bool `json:"deleted"`
}

// HasRequirement reports whether id is one of the task's requirements.
func (t *Task) HasRequirement(id int) bool {
	return slices.Contains(t.Requirements, id)
}

// HasDependent reports whether id depends on this task.
func (t *Task) HasDependent(id int) bool {
	return slices.Contains(t.Dependents, id)
}

// HasSubtask reports whether id is a subtask of this task.
func (t *Task) HasSubtask(id int) bool {
	return slices.Contains(t.Subtasks, id)
}

// HasTag reports whether the task carries tag.
func (t *Task) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// Clone returns a deep copy of the task. The engine never hands out
// pointers into its own records.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = cloneSlice(t.Tags)
	c.Requirements = cloneSlice(t.Requirements)
	c.Dependents = cloneSlice(t.Dependents)
	c.Subtasks = cloneSlice(t.Subtasks)
	if t.TimeCreated != nil {
		tc := *t.TimeCreated
		c.TimeCreated = &tc
	}
	if t.TimeFinished != nil {
		tf := *t.TimeFinished
		c.TimeFinished = &tf
	}
	if t.Parent != nil {
		p := *t.Parent
		c.Parent = &p
	}
	return &c
}

// cloneSlice copies s, keeping an empty (non-nil) slice so the JSON
// encoding stays [] instead of null.
func cloneSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Backend persists the whole task snapshot as one opaque document.
// Write overwrites the previous snapshot entirely.
type Backend interface {
	// Read returns the last written snapshot.
	// Returns ErrNoSnapshot if nothing has been written yet.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored snapshot with data.
	Write(ctx context.Context, data []byte) error

	// Close releases any resources held by the backend.
	Close() error
}
