package taskservice

import (
	"context"
	"fmt"
	"slices"

	"taskgraph/internal/taskstorage"
)

// AddTag adds tag to a task. Adding a tag the task already has is not an
// error; the snapshot is flushed either way.
func (e *Engine) AddTag(ctx context.Context, id int, tag string) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if !t.HasTag(tag) {
			t.Tags = append(t.Tags, tag)
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// RemoveTag removes tag from a task.
func (e *Engine) RemoveTag(ctx context.Context, id int, tag string) (*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result *taskstorage.Task
	err := e.mutate(ctx, func() error {
		t, err := e.lookup(id)
		if err != nil {
			return err
		}
		if !t.HasTag(tag) {
			return fmt.Errorf("task %d tag %q: %w", id, tag, taskstorage.ErrTagNotFound)
		}
		t.Tags = slices.DeleteFunc(t.Tags, func(s string) bool { return s == tag })
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// AllTags returns every tag in use on live tasks, sorted.
func (e *Engine) AllTags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var tags []string
	for _, t := range e.tasks {
		if t.Deleted {
			continue
		}
		for _, tag := range t.Tags {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}
	slices.Sort(tags)
	return tags
}
