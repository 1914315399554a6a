// Package graph provides stateless traversal functions over task snapshots.
// All functions take a slice of tasks indexed by id, as returned by the
// engine, and never mutate it.
// Import chain: cmd/server → taskservice → graph → taskstorage.
package graph

import (
	"fmt"
	"slices"

	"taskgraph/internal/taskstorage"
)

// State classifies a task for the ready/blocked views.
type State string

const (
	StateFinished State = "finished"
	StateReady    State = "ready"
	StateBlocked  State = "blocked"
	StateDeleted  State = "deleted"
)

// lookup returns the task with id, or nil when id is out of range.
func lookup(tasks []*taskstorage.Task, id int) *taskstorage.Task {
	if id < 0 || id >= len(tasks) {
		return nil
	}
	return tasks[id]
}

// Classify returns the state of every task. A task is blocked while any of
// its requirements is unfinished; tasks on a dependency cycle are therefore
// always blocked.
func Classify(tasks []*taskstorage.Task) map[int]State {
	result := make(map[int]State, len(tasks))
	for _, t := range tasks {
		switch {
		case t.Deleted:
			result[t.ID] = StateDeleted
		case t.Finished:
			result[t.ID] = StateFinished
		case IsBlocked(tasks, t):
			result[t.ID] = StateBlocked
		default:
			result[t.ID] = StateReady
		}
	}
	return result
}

// IsBlocked reports whether t has a live, unfinished requirement.
func IsBlocked(tasks []*taskstorage.Task, t *taskstorage.Task) bool {
	for _, reqID := range t.Requirements {
		req := lookup(tasks, reqID)
		if req == nil || req.Deleted {
			continue
		}
		if !req.Finished {
			return true
		}
	}
	return false
}

// TopologicalOrder sorts the live tasks with Kahn's algorithm on
// requirement edges, requirements first. Ties keep creation order.
// Returns an error if the dependency graph has a cycle.
func TopologicalOrder(tasks []*taskstorage.Task) ([]*taskstorage.Task, error) {
	inDegree := make(map[int]int, len(tasks))
	var live []*taskstorage.Task
	for _, t := range tasks {
		if t.Deleted {
			continue
		}
		live = append(live, t)
		inDegree[t.ID] = 0
	}
	for _, t := range live {
		for _, reqID := range t.Requirements {
			if _, ok := inDegree[reqID]; ok {
				inDegree[t.ID]++
			}
		}
	}

	var queue []int
	for _, t := range live {
		if inDegree[t.ID] == 0 {
			queue = append(queue, t.ID)
		}
	}

	var result []*taskstorage.Task
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t := tasks[id]
		result = append(result, t)

		for _, depID := range t.Dependents {
			if _, ok := inDegree[depID]; !ok {
				continue
			}
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if len(result) != len(live) {
		return nil, fmt.Errorf("cycle detected in dependency graph: sorted %d of %d tasks", len(result), len(live))
	}
	return result, nil
}

// FindCycles returns every strongly connected component of the dependency
// graph with more than one task, each sorted by id. Adding a dependency
// never checks for cycles, so this is how they are surfaced.
func FindCycles(tasks []*taskstorage.Task) [][]int {
	t := tarjan{
		tasks:   tasks,
		index:   make(map[int]int),
		lowlink: make(map[int]int),
		onStack: make(map[int]bool),
	}
	for _, task := range tasks {
		if task.Deleted {
			continue
		}
		if _, seen := t.index[task.ID]; !seen {
			t.strongConnect(task.ID)
		}
	}
	slices.SortFunc(t.cycles, func(a, b []int) int { return a[0] - b[0] })
	return t.cycles
}

type tarjan struct {
	tasks   []*taskstorage.Task
	next    int
	index   map[int]int
	lowlink map[int]int
	stack   []int
	onStack map[int]bool
	cycles  [][]int
}

func (t *tarjan) strongConnect(id int) {
	t.index[id] = t.next
	t.lowlink[id] = t.next
	t.next++
	t.stack = append(t.stack, id)
	t.onStack[id] = true

	for _, reqID := range t.tasks[id].Requirements {
		req := lookup(t.tasks, reqID)
		if req == nil || req.Deleted {
			continue
		}
		if _, seen := t.index[reqID]; !seen {
			t.strongConnect(reqID)
			t.lowlink[id] = min(t.lowlink[id], t.lowlink[reqID])
		} else if t.onStack[reqID] {
			t.lowlink[id] = min(t.lowlink[id], t.index[reqID])
		}
	}

	if t.lowlink[id] != t.index[id] {
		return
	}
	var component []int
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		component = append(component, top)
		if top == id {
			break
		}
	}
	if len(component) > 1 {
		slices.Sort(component)
		t.cycles = append(t.cycles, component)
	}
}

// Descendants returns the ids of all subtasks of rootID, recursively, in
// breadth-first order. The root itself is not included.
func Descendants(tasks []*taskstorage.Task, rootID int) []int {
	root := lookup(tasks, rootID)
	if root == nil {
		return nil
	}

	var result []int
	visited := map[int]bool{rootID: true}
	queue := slices.Clone(root.Subtasks)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		child := lookup(tasks, id)
		if child == nil {
			continue
		}
		result = append(result, id)
		queue = append(queue, child.Subtasks...)
	}
	return result
}

// FindHierarchyRoot walks the parent chain from id to a task with no parent.
// Returns an error if the chain loops back on itself.
func FindHierarchyRoot(tasks []*taskstorage.Task, id int) (int, error) {
	visited := make(map[int]bool)
	current := id
	for {
		if visited[current] {
			return 0, fmt.Errorf("cycle detected in parent chain at task %d", current)
		}
		visited[current] = true

		t := lookup(tasks, current)
		if t == nil {
			return 0, fmt.Errorf("task %d: %w", current, taskstorage.ErrNotFound)
		}
		if t.Parent == nil {
			return current, nil
		}
		current = *t.Parent
	}
}

// RequirementTree returns the transitive requirements of id, depth first,
// with each task's depth below id. A task reachable twice is listed once.
func RequirementTree(tasks []*taskstorage.Task, id int) []TreeNode {
	var nodes []TreeNode
	visited := map[int]bool{id: true}
	var walk func(int, int)
	walk = func(current, depth int) {
		t := lookup(tasks, current)
		if t == nil {
			return
		}
		for _, reqID := range t.Requirements {
			if visited[reqID] {
				continue
			}
			visited[reqID] = true
			nodes = append(nodes, TreeNode{ID: reqID, Depth: depth})
			walk(reqID, depth+1)
		}
	}
	walk(id, 1)
	return nodes
}

// TreeNode is one entry of RequirementTree.
type TreeNode struct {
	ID    int `json:"id"`
	Depth int `json:"depth"`
}
