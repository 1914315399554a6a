package taskservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"taskgraph/internal/graph"
	"taskgraph/internal/taskstorage"
)

// Doctor checks the records for broken or one-sided relations and returns
// a description of each problem found. With fix set, every problem except
// cycles is repaired and the repaired snapshot is persisted. Cycles are
// only reported: there is no safe edge to drop automatically.
func (e *Engine) Doctor(ctx context.Context, fix bool) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := &doctor{tasks: cloneAll(e.tasks), hierarchy: e.hierarchy}
	for _, t := range d.tasks {
		d.checkTags(t)
		d.checkPinned(t)
		d.checkRequirements(t)
		d.checkDependents(t)
		d.checkParent(t)
		d.checkSubtasks(t)
	}
	d.checkCycles()

	if fix && d.changed {
		err := e.mutate(ctx, func() error {
			e.tasks = d.tasks
			return nil
		})
		if err != nil {
			return d.problems, fmt.Errorf("saving repairs: %w", err)
		}
	}
	return d.problems, nil
}

// doctor works on a private copy of the records; repairs are applied to
// the copy as problems are found so later checks see the repaired state.
type doctor struct {
	tasks     []*taskstorage.Task
	hierarchy HierarchyPolicy
	problems  []string
	changed   bool
}

func (d *doctor) report(format string, args ...any) {
	d.problems = append(d.problems, fmt.Sprintf(format, args...))
}

func (d *doctor) repair(fn func()) {
	fn()
	d.changed = true
}

func (d *doctor) get(id int) *taskstorage.Task {
	if id < 0 || id >= len(d.tasks) {
		return nil
	}
	return d.tasks[id]
}

func (d *doctor) checkTags(t *taskstorage.Task) {
	if deduped := dedupe(t.Tags); len(deduped) != len(t.Tags) {
		d.report("duplicate tags: task %d", t.ID)
		d.repair(func() { t.Tags = deduped })
	}
}

func (d *doctor) checkPinned(t *taskstorage.Task) {
	if t.Deleted && t.Pinned {
		d.report("deleted task pinned: task %d", t.ID)
		d.repair(func() { t.Pinned = false })
	}
}

func (d *doctor) checkRequirements(t *taskstorage.Task) {
	if deduped := dedupeIDs(t.Requirements); len(deduped) != len(t.Requirements) {
		d.report("duplicate requirements: task %d", t.ID)
		d.repair(func() { t.Requirements = deduped })
	}

	for _, reqID := range slices.Clone(t.Requirements) {
		req := d.get(reqID)
		switch {
		case req == nil:
			d.report("broken dependency: task %d requires non-existent %d", t.ID, reqID)
			d.repair(func() { t.Requirements = without(t.Requirements, reqID) })
		case reqID == t.ID:
			d.report("self dependency: task %d requires itself", t.ID)
			d.repair(func() { t.Requirements = without(t.Requirements, reqID) })
		case t.Deleted || req.Deleted:
			d.report("dependency on deleted task: task %d requires %d", t.ID, reqID)
			d.repair(func() {
				t.Requirements = without(t.Requirements, reqID)
				req.Dependents = without(req.Dependents, t.ID)
			})
		case !req.HasDependent(t.ID):
			d.report("asymmetric dependency: task %d requires %d but %d doesn't list it as dependent", t.ID, reqID, reqID)
			d.repair(func() { req.Dependents = append(req.Dependents, t.ID) })
		}
	}
}

func (d *doctor) checkDependents(t *taskstorage.Task) {
	if deduped := dedupeIDs(t.Dependents); len(deduped) != len(t.Dependents) {
		d.report("duplicate dependents: task %d", t.ID)
		d.repair(func() { t.Dependents = deduped })
	}

	for _, depID := range slices.Clone(t.Dependents) {
		dep := d.get(depID)
		switch {
		case dep == nil:
			d.report("broken dependent reference: task %d has non-existent dependent %d", t.ID, depID)
			d.repair(func() { t.Dependents = without(t.Dependents, depID) })
		case depID == t.ID:
			d.report("self dependency: task %d lists itself as dependent", t.ID)
			d.repair(func() { t.Dependents = without(t.Dependents, depID) })
		case dep.HasRequirement(t.ID):
			// Checked from the requirement side.
		case t.Deleted || dep.Deleted:
			d.report("stale dependent: task %d lists %d as dependent but one of them is deleted", t.ID, depID)
			d.repair(func() { t.Dependents = without(t.Dependents, depID) })
		default:
			d.report("asymmetric dependency: task %d lists %d as dependent but %d doesn't require it", t.ID, depID, depID)
			d.repair(func() { dep.Requirements = append(dep.Requirements, t.ID) })
		}
	}
}

// detached reports whether a hierarchy link between a and b should not
// exist under the engine's policy.
func (d *doctor) detached(a, b *taskstorage.Task) bool {
	return d.hierarchy == HierarchyDetach && (a.Deleted || b.Deleted)
}

func (d *doctor) checkParent(t *taskstorage.Task) {
	if t.Parent == nil {
		return
	}
	parentID := *t.Parent
	parent := d.get(parentID)
	switch {
	case parent == nil:
		d.report("broken parent reference: task %d has non-existent parent %d", t.ID, parentID)
		d.repair(func() { t.Parent = nil })
	case parentID == t.ID:
		d.report("self parent: task %d is its own parent", t.ID)
		d.repair(func() { t.Parent = nil })
	case d.detached(t, parent):
		d.report("hierarchy link to deleted task: task %d has parent %d", t.ID, parentID)
		d.repair(func() {
			t.Parent = nil
			parent.Subtasks = without(parent.Subtasks, t.ID)
		})
	case !parent.HasSubtask(t.ID):
		d.report("asymmetric parent/subtask: task %d has parent %d but parent doesn't list it as subtask", t.ID, parentID)
		d.repair(func() { parent.Subtasks = append(parent.Subtasks, t.ID) })
	}
}

func (d *doctor) checkSubtasks(t *taskstorage.Task) {
	if deduped := dedupeIDs(t.Subtasks); len(deduped) != len(t.Subtasks) {
		d.report("duplicate subtasks: task %d", t.ID)
		d.repair(func() { t.Subtasks = deduped })
	}

	for _, childID := range slices.Clone(t.Subtasks) {
		child := d.get(childID)
		switch {
		case child == nil:
			d.report("broken subtask reference: task %d has non-existent subtask %d", t.ID, childID)
			d.repair(func() { t.Subtasks = without(t.Subtasks, childID) })
		case childID == t.ID:
			d.report("self parent: task %d lists itself as subtask", t.ID)
			d.repair(func() { t.Subtasks = without(t.Subtasks, childID) })
		case child.Parent != nil && *child.Parent == t.ID:
			// Checked from the child side.
		case child.Parent != nil:
			d.report("conflicting parent: task %d is listed under %d but has parent %d", childID, t.ID, *child.Parent)
			d.repair(func() { t.Subtasks = without(t.Subtasks, childID) })
		case d.detached(t, child):
			d.report("hierarchy link to deleted task: task %d lists subtask %d", t.ID, childID)
			d.repair(func() { t.Subtasks = without(t.Subtasks, childID) })
		default:
			d.report("asymmetric parent/subtask: task %d lists subtask %d but it has no parent", t.ID, childID)
			d.repair(func() {
				p := t.ID
				child.Parent = &p
			})
		}
	}
}

// checkCycles reports dependency and hierarchy cycles. They are never
// repaired.
func (d *doctor) checkCycles() {
	for _, cycle := range graph.FindCycles(d.tasks) {
		d.report("dependency cycle: tasks %s", joinIDs(cycle))
	}

	seen := make(map[string]bool)
	for _, t := range d.tasks {
		_, err := graph.FindHierarchyRoot(d.tasks, t.ID)
		if err == nil || errors.Is(err, taskstorage.ErrNotFound) {
			continue
		}
		cycle := d.parentLoop(t.ID)
		key := joinIDs(cycle)
		if len(cycle) == 0 || seen[key] {
			continue
		}
		seen[key] = true
		d.report("hierarchy cycle: tasks %s", key)
	}
}

// parentLoop follows parent links from id and returns the ids on the loop
// it ends in, sorted.
func (d *doctor) parentLoop(id int) []int {
	var path []int
	pos := make(map[int]int)
	current := id
	for {
		if start, ok := pos[current]; ok {
			loop := slices.Clone(path[start:])
			slices.Sort(loop)
			return loop
		}
		t := d.get(current)
		if t == nil || t.Parent == nil {
			return nil
		}
		pos[current] = len(path)
		path = append(path, current)
		current = *t.Parent
	}
}

func dedupeIDs(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
