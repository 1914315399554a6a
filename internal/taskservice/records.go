package taskservice

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"taskgraph/internal/taskstorage"
)

// ListOptions filters List.
type ListOptions struct {
	IncludeDeleted bool
}

// TaskUpdate carries the fields to replace. Nil fields are left alone.
type TaskUpdate struct {
	Description *string
	Tags        *[]string
}

// Create appends a new task. Its id is the number of tasks created before
// it, tombstones included, so ids are never reused.
func (e *Engine) Create(ctx context.Context, description string, tags []string) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var created *taskstorage.Task
	err := e.mutate(ctx, func() error {
		now := e.now()
		t := &taskstorage.Task{
			ID:           len(e.tasks),
			Description:  description,
			TimeCreated:  &now,
			Tags:         dedupe(tags),
			Requirements: []int{},
			Dependents:   []int{},
			Subtasks:     []int{},
		}
		e.tasks = append(e.tasks, t)
		created = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return created.Clone(), nil
}

// Get returns a copy of the task with id. Deleted tasks are returned too.
func (e *Engine) Get(id int) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// List yields copies of the tasks in creation order. The sequence is
// restartable: each iteration walks the records as they are at that time.
func (e *Engine) List(opts ListOptions) iter.Seq[*taskstorage.Task] {
	return func(yield func(*taskstorage.Task) bool) {
		for i := 0; ; i++ {
			t, ok := e.at(i)
			if !ok {
				return
			}
			if t.Deleted && !opts.IncludeDeleted {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// at returns a copy of the record at index i, taking the lock only for
// the copy so the consumer may call back into the engine mid-iteration.
func (e *Engine) at(i int) (*taskstorage.Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= len(e.tasks) {
		return nil, false
	}
	return e.tasks[i].Clone(), true
}

// Tasks collects List into a slice.
func (e *Engine) Tasks(opts ListOptions) []*taskstorage.Task {
	return slices.Collect(e.List(opts))
}

// Update replaces the supplied fields of a task. Deleted tasks may still be
// updated.
func (e *Engine) Update(ctx context.Context, id int, upd TaskUpdate) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var updated *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Tags != nil {
			t.Tags = dedupe(*upd.Tags)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// Finish marks a task finished and stamps its finish time.
func (e *Engine) Finish(ctx context.Context, id int) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var finished *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if t.Finished {
			return fmt.Errorf("task %d: %w", id, taskstorage.ErrAlreadyFinished)
		}
		now := e.now()
		t.Finished = true
		t.TimeFinished = &now
		finished = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finished.Clone(), nil
}

// Delete tombstones a task. Its dependency edges are removed from both
// sides, it is unpinned, and its hierarchy links are handled according to
// the engine's HierarchyPolicy. The record itself stays so ids remain
// stable.
func (e *Engine) Delete(ctx context.Context, id int) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var deleted *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if t.Deleted {
			return fmt.Errorf("task %d: %w", id, taskstorage.ErrAlreadyDeleted)
		}

		for _, reqID := range t.Requirements {
			if req, err := e.lookup(reqID); err == nil {
				req.Dependents = without(req.Dependents, id)
			}
		}
		for _, depID := range t.Dependents {
			if dep, err := e.lookup(depID); err == nil {
				dep.Requirements = without(dep.Requirements, id)
			}
		}
		t.Requirements = []int{}
		t.Dependents = []int{}

		if e.hierarchy == HierarchyDetach {
			e.detachHierarchy(t)
		}

		t.Pinned = false
		t.Deleted = true
		deleted = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted.Clone(), nil
}

// detachHierarchy severs t from its parent and its subtasks.
func (e *Engine) detachHierarchy(t *taskstorage.Task) {
	if t.Parent != nil {
		if parent, err := e.lookup(*t.Parent); err == nil {
			parent.Subtasks = without(parent.Subtasks, t.ID)
		}
		t.Parent = nil
	}
	for _, childID := range t.Subtasks {
		if child, err := e.lookup(childID); err == nil && child.Parent != nil && *child.Parent == t.ID {
			child.Parent = nil
		}
	}
	t.Subtasks = []int{}
}

// Pin marks a live task as pinned.
func (e *Engine) Pin(ctx context.Context, id int) (*taskstorage.Task, error) {
	return e.setPinned(ctx, id, true)
}

// Unpin clears the pinned flag.
func (e *Engine) Unpin(ctx context.Context, id int) (*taskstorage.Task, error) {
	return e.setPinned(ctx, id, false)
}

func (e *Engine) setPinned(ctx context.Context, id int, pinned bool) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if pinned && t.Deleted {
			return fmt.Errorf("task %d: %w", id, taskstorage.ErrAlreadyDeleted)
		}
		t.Pinned = pinned
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// dedupe returns tags with duplicates dropped, first occurrence wins.
// The result is never nil.
func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

// without returns s with every occurrence of v removed.
func without(s []int, v int) []int {
	return slices.DeleteFunc(s, func(x int) bool { return x == v })
}
