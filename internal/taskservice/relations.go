package taskservice

import (
	"context"
	"fmt"

	"taskgraph/internal/taskstorage"
)

// livePair looks up two distinct, non-deleted tasks. Caller must hold e.mu.
func (e *Engine) livePair(a, b int) (*taskstorage.Task, *taskstorage.Task, error) {
	if a == b {
		return nil, nil, fmt.Errorf("task %d: %w", a, taskstorage.ErrSelfRelation)
	}
	ta, err := e.lookup(a)
	if err != nil {
		return nil, nil, err
	}
	tb, err := e.lookup(b)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range []*taskstorage.Task{ta, tb} {
		if t.Deleted {
			return nil, nil, fmt.Errorf("task %d: %w", t.ID, taskstorage.ErrAlreadyDeleted)
		}
	}
	return ta, tb, nil
}

// AddDependency records that dependentID requires requirementID. Both
// sides of the edge are written together. Cycles are not rejected here;
// Doctor reports them.
func (e *Engine) AddDependency(ctx context.Context, requirementID, dependentID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, func() error {
		req, dep, err := e.livePair(requirementID, dependentID)
		if err != nil {
			return err
		}
		if dep.HasRequirement(requirementID) || req.HasDependent(dependentID) {
			return fmt.Errorf("task %d requires %d: %w", dependentID, requirementID, taskstorage.ErrDuplicateEdge)
		}
		req.Dependents = append(req.Dependents, dependentID)
		dep.Requirements = append(dep.Requirements, requirementID)
		return nil
	})
}

// RemoveDependency removes both sides of a requirement edge.
func (e *Engine) RemoveDependency(ctx context.Context, requirementID, dependentID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, func() error {
		req, err := e.lookup(requirementID)
		if err != nil {
			return err
		}
		dep, err := e.lookup(dependentID)
		if err != nil {
			return err
		}
		if !dep.HasRequirement(requirementID) && !req.HasDependent(dependentID) {
			return fmt.Errorf("task %d requires %d: %w", dependentID, requirementID, taskstorage.ErrEdgeNotFound)
		}
		req.Dependents = without(req.Dependents, dependentID)
		dep.Requirements = without(dep.Requirements, requirementID)
		return nil
	})
}

// AddSubtask makes childID a subtask of parentID. A task has at most one
// parent; re-adding it to its current parent is also rejected.
func (e *Engine) AddSubtask(ctx context.Context, parentID, childID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, func() error {
		parent, child, err := e.livePair(parentID, childID)
		if err != nil {
			return err
		}
		if child.Parent != nil {
			return fmt.Errorf("task %d has parent %d: %w", childID, *child.Parent, taskstorage.ErrAlreadyChild)
		}
		p := parentID
		child.Parent = &p
		parent.Subtasks = append(parent.Subtasks, childID)
		return nil
	})
}

// RemoveSubtask detaches childID from parentID.
func (e *Engine) RemoveSubtask(ctx context.Context, parentID, childID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, func() error {
		parent, err := e.lookup(parentID)
		if err != nil {
			return err
		}
		child, err := e.lookup(childID)
		if err != nil {
			return err
		}
		if !parent.HasSubtask(childID) {
			return fmt.Errorf("task %d under %d: %w", childID, parentID, taskstorage.ErrNotAChild)
		}
		parent.Subtasks = without(parent.Subtasks, childID)
		if child.Parent != nil && *child.Parent == parentID {
			child.Parent = nil
		}
		return nil
	})
}
