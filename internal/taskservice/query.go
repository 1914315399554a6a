package taskservice

import (
	"taskgraph/internal/graph"
	"taskgraph/internal/taskstorage"
)

// Ready returns live, unfinished tasks whose requirements are all finished.
// Tasks on a dependency cycle never become ready.
func (e *Engine) Ready() []*taskstorage.Task {
	return e.byState(graph.StateReady)
}

// Blocked returns live, unfinished tasks with at least one unfinished
// requirement.
func (e *Engine) Blocked() []*taskstorage.Task {
	return e.byState(graph.StateBlocked)
}

func (e *Engine) byState(want graph.State) []*taskstorage.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	states := graph.Classify(e.tasks)
	var result []*taskstorage.Task
	for _, t := range e.tasks {
		if states[t.ID] == want {
			result = append(result, t.Clone())
		}
	}
	return result
}

// Blockers returns the unfinished, live requirements of a task.
func (e *Engine) Blockers(id int) ([]*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	var result []*taskstorage.Task
	for _, reqID := range t.Requirements {
		req, err := e.lookup(reqID)
		if err != nil || req.Deleted || req.Finished {
			continue
		}
		result = append(result, req.Clone())
	}
	return result, nil
}

// Descendants returns every subtask of id, recursively, breadth first.
func (e *Engine) Descendants(id int) ([]*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.lookup(id); err != nil {
		return nil, err
	}
	var result []*taskstorage.Task
	for _, childID := range graph.Descendants(e.tasks, id) {
		result = append(result, e.tasks[childID].Clone())
	}
	return result, nil
}

// RequirementTree returns the transitive requirements of id with their
// depth below it.
func (e *Engine) RequirementTree(id int) ([]graph.TreeNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.lookup(id); err != nil {
		return nil, err
	}
	return graph.RequirementTree(e.tasks, id), nil
}

// Plan returns the live, unfinished tasks in an order where every task
// comes after its requirements. It fails if the dependency graph has a
// cycle.
func (e *Engine) Plan() ([]*taskstorage.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ordered, err := graph.TopologicalOrder(e.tasks)
	if err != nil {
		return nil, err
	}
	var result []*taskstorage.Task
	for _, t := range ordered {
		if !t.Finished {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}
