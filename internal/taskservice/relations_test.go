package taskservice

import (
	"context"
	"errors"
	"slices"
	"testing"

	"taskgraph/internal/taskstorage"
)

// checkSymmetry fails the test if any dependency or hierarchy edge is
// recorded on only one side.
func checkSymmetry(t *testing.T, e *Engine) {
	t.Helper()
	tasks := e.Snapshot()
	for _, task := range tasks {
		for _, r := range task.Requirements {
			if !tasks[r].HasDependent(task.ID) {
				t.Errorf("task %d requires %d but %d doesn't list it as dependent", task.ID, r, r)
			}
		}
		for _, d := range task.Dependents {
			if !tasks[d].HasRequirement(task.ID) {
				t.Errorf("task %d lists dependent %d but %d doesn't require it", task.ID, d, d)
			}
		}
		if task.Parent != nil && !tasks[*task.Parent].HasSubtask(task.ID) {
			t.Errorf("task %d has parent %d which doesn't list it", task.ID, *task.Parent)
		}
		for _, s := range task.Subtasks {
			if p := tasks[s].Parent; p == nil || *p != task.ID {
				t.Errorf("task %d lists subtask %d whose parent is %v", task.ID, s, p)
			}
		}
	}
}

func TestAddDependency(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "design")
	mustCreate(t, e, "build")

	if err := e.AddDependency(ctx, 0, 1); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if got := mustGet(t, e, 1).Requirements; !slices.Equal(got, []int{0}) {
		t.Errorf("requirements = %v, want [0]", got)
	}
	if got := mustGet(t, e, 0).Dependents; !slices.Equal(got, []int{1}) {
		t.Errorf("dependents = %v, want [1]", got)
	}
	checkSymmetry(t, e)
}

func TestAddDependencyErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "a")
	mustCreate(t, e, "b")
	mustCreate(t, e, "c")
	if err := e.AddDependency(ctx, 0, 1); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if _, err := e.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	tests := []struct {
		name      string
		req, dep  int
		wantError error
	}{
		{"duplicate", 0, 1, taskstorage.ErrDuplicateEdge},
		{"self", 1, 1, taskstorage.ErrSelfRelation},
		{"unknown requirement", 9, 1, taskstorage.ErrNotFound},
		{"unknown dependent", 0, 9, taskstorage.ErrNotFound},
		{"deleted dependent", 0, 2, taskstorage.ErrAlreadyDeleted},
		{"deleted requirement", 2, 0, taskstorage.ErrAlreadyDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.AddDependency(ctx, tt.req, tt.dep)
			if !errors.Is(err, tt.wantError) {
				t.Errorf("AddDependency(%d, %d) error = %v, want %v", tt.req, tt.dep, err, tt.wantError)
			}
		})
	}

	if got := mustGet(t, e, 1).Requirements; !slices.Equal(got, []int{0}) {
		t.Errorf("failed adds changed requirements: %v", got)
	}
	checkSymmetry(t, e)
}

func TestAddDependencyAllowsCycles(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "a")
	mustCreate(t, e, "b")

	if err := e.AddDependency(ctx, 0, 1); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if err := e.AddDependency(ctx, 1, 0); err != nil {
		t.Fatalf("AddDependency closing a cycle failed: %v", err)
	}
	if ready := e.Ready(); len(ready) != 0 {
		t.Errorf("tasks on a cycle reported ready: %v", ready)
	}
	if blocked := e.Blocked(); len(blocked) != 2 {
		t.Errorf("blocked = %d tasks, want 2", len(blocked))
	}
}

func TestRemoveDependency(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "a")
	mustCreate(t, e, "b")
	if err := e.AddDependency(ctx, 0, 1); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	if err := e.RemoveDependency(ctx, 0, 1); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	if len(mustGet(t, e, 0).Dependents) != 0 || len(mustGet(t, e, 1).Requirements) != 0 {
		t.Error("edge still present after removal")
	}
	if err := e.RemoveDependency(ctx, 0, 1); !errors.Is(err, taskstorage.ErrEdgeNotFound) {
		t.Errorf("second RemoveDependency error = %v, want ErrEdgeNotFound", err)
	}
	if err := e.RemoveDependency(ctx, 0, 5); !errors.Is(err, taskstorage.ErrNotFound) {
		t.Errorf("RemoveDependency(0, 5) error = %v, want ErrNotFound", err)
	}
}

func TestAddSubtask(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "parent")
	mustCreate(t, e, "child")
	mustCreate(t, e, "other parent")

	if err := e.AddSubtask(ctx, 0, 1); err != nil {
		t.Fatalf("AddSubtask failed: %v", err)
	}
	if got := mustGet(t, e, 1).Parent; got == nil || *got != 0 {
		t.Errorf("parent = %v, want 0", got)
	}
	if got := mustGet(t, e, 0).Subtasks; !slices.Equal(got, []int{1}) {
		t.Errorf("subtasks = %v, want [1]", got)
	}

	if err := e.AddSubtask(ctx, 2, 1); !errors.Is(err, taskstorage.ErrAlreadyChild) {
		t.Errorf("AddSubtask to second parent error = %v, want ErrAlreadyChild", err)
	}
	if err := e.AddSubtask(ctx, 0, 1); !errors.Is(err, taskstorage.ErrAlreadyChild) {
		t.Errorf("AddSubtask to same parent error = %v, want ErrAlreadyChild", err)
	}
	if err := e.AddSubtask(ctx, 0, 0); !errors.Is(err, taskstorage.ErrSelfRelation) {
		t.Errorf("AddSubtask(0, 0) error = %v, want ErrSelfRelation", err)
	}
	if err := e.AddSubtask(ctx, 0, 8); !errors.Is(err, taskstorage.ErrNotFound) {
		t.Errorf("AddSubtask(0, 8) error = %v, want ErrNotFound", err)
	}
	if got := mustGet(t, e, 1).Parent; got == nil || *got != 0 {
		t.Errorf("parent after rejected attaches = %v, want 0", got)
	}
	if got := mustGet(t, e, 0).Subtasks; !slices.Equal(got, []int{1}) {
		t.Errorf("subtasks after rejected attaches = %v, want [1]", got)
	}
	if got := mustGet(t, e, 2).Subtasks; len(got) != 0 {
		t.Errorf("other parent gained subtasks %v", got)
	}
	checkSymmetry(t, e)
}

func TestRemoveSubtask(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "parent")
	mustCreate(t, e, "child")
	if err := e.AddSubtask(ctx, 0, 1); err != nil {
		t.Fatalf("AddSubtask failed: %v", err)
	}

	if err := e.RemoveSubtask(ctx, 0, 1); err != nil {
		t.Fatalf("RemoveSubtask failed: %v", err)
	}
	if mustGet(t, e, 1).Parent != nil || len(mustGet(t, e, 0).Subtasks) != 0 {
		t.Error("hierarchy link still present after removal")
	}
	if err := e.RemoveSubtask(ctx, 0, 1); !errors.Is(err, taskstorage.ErrNotAChild) {
		t.Errorf("second RemoveSubtask error = %v, want ErrNotAChild", err)
	}

	// A detached child can be adopted again.
	if err := e.AddSubtask(ctx, 0, 1); err != nil {
		t.Errorf("re-adding subtask failed: %v", err)
	}
}

func TestTags(t *testing.T) {
	e, backend := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "x", "a")

	task, err := e.AddTag(ctx, 0, "b")
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	if !slices.Equal(task.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %v, want [a b]", task.Tags)
	}

	writes := backend.writes
	task, err = e.AddTag(ctx, 0, "b")
	if err != nil {
		t.Fatalf("AddTag of existing tag failed: %v", err)
	}
	if !slices.Equal(task.Tags, []string{"a", "b"}) {
		t.Errorf("tags after idempotent add = %v", task.Tags)
	}
	if backend.writes != writes+1 {
		t.Errorf("idempotent AddTag did not persist")
	}

	task, err = e.RemoveTag(ctx, 0, "a")
	if err != nil {
		t.Fatalf("RemoveTag failed: %v", err)
	}
	if !slices.Equal(task.Tags, []string{"b"}) {
		t.Errorf("tags = %v, want [b]", task.Tags)
	}
	if _, err := e.RemoveTag(ctx, 0, "a"); !errors.Is(err, taskstorage.ErrTagNotFound) {
		t.Errorf("RemoveTag of missing tag error = %v, want ErrTagNotFound", err)
	}
}

func TestAllTags(t *testing.T) {
	e, _ := newTestEngine(t)
	mustCreate(t, e, "a", "work", "home")
	mustCreate(t, e, "b", "errand", "work")

	if got := e.AllTags(); !slices.Equal(got, []string{"errand", "home", "work"}) {
		t.Errorf("AllTags = %v", got)
	}
}

// Create three tasks, link two, finish one, delete the other.
func TestScenarioLinkFinishDelete(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "design")
	mustCreate(t, e, "build")
	mustCreate(t, e, "ship")

	if err := e.AddDependency(ctx, 0, 1); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if ready := ids(e.Ready()); !slices.Equal(ready, []int{0, 2}) {
		t.Errorf("ready = %v, want [0 2]", ready)
	}

	if _, err := e.Finish(ctx, 0); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if ready := ids(e.Ready()); !slices.Equal(ready, []int{1, 2}) {
		t.Errorf("ready after finish = %v, want [1 2]", ready)
	}

	if _, err := e.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := ids(e.Tasks(ListOptions{})); !slices.Equal(got, []int{0, 2}) {
		t.Errorf("live tasks = %v, want [0 2]", got)
	}
	if len(mustGet(t, e, 0).Dependents) != 0 {
		t.Error("finished requirement still lists the deleted dependent")
	}
	checkSymmetry(t, e)
}

// Build a small tree, then delete the middle node.
func TestScenarioHierarchy(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for _, d := range []string{"project", "phase 1", "step a", "step b"} {
		mustCreate(t, e, d)
	}
	for _, link := range [][2]int{{0, 1}, {1, 2}, {1, 3}} {
		if err := e.AddSubtask(ctx, link[0], link[1]); err != nil {
			t.Fatalf("AddSubtask(%d, %d) failed: %v", link[0], link[1], err)
		}
	}

	desc, err := e.Descendants(0)
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if got := ids(desc); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("descendants = %v, want [1 2 3]", got)
	}

	if _, err := e.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	desc, err = e.Descendants(0)
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if len(desc) != 0 {
		t.Errorf("descendants after delete = %v, want none", ids(desc))
	}
	for _, id := range []int{2, 3} {
		if p := mustGet(t, e, id).Parent; p != nil {
			t.Errorf("task %d parent = %d, want nil", id, *p)
		}
	}
	checkSymmetry(t, e)
}

func ids(tasks []*taskstorage.Task) []int {
	out := make([]int, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}
