package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"taskgraph/internal/taskstorage"
)

func TestFinishMultiple(t *testing.T) {
	app := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	for _, d := range []string{"a", "b", "c"} {
		mustCreate(t, app, d)
	}

	cmd := newFinishCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"0", "2"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	for _, id := range []int{0, 2} {
		task := mustGet(t, app, id)
		if !task.Finished || task.TimeFinished == nil {
			t.Errorf("task %d not finished: %+v", id, task)
		}
		if !strings.Contains(out.String(), fmt.Sprintf("Finished task %d", id)) {
			t.Errorf("output missing task %d: %q", id, out.String())
		}
	}
	if mustGet(t, app, 1).Finished {
		t.Error("task 1 should not be finished")
	}
}

func TestFinishContinuesPastErrors(t *testing.T) {
	app := setupTestApp(t)
	errOut := app.Err.(*bytes.Buffer)
	mustCreate(t, app, "a")
	mustCreate(t, app, "b")
	if _, err := app.Engine.Finish(t.Context(), 0); err != nil {
		t.Fatal(err)
	}

	cmd := newFinishCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"0", "7", "1"})
	err := cmd.Execute()
	if !errors.Is(err, taskstorage.ErrAlreadyFinished) {
		t.Fatalf("error = %v, want the first failure (ErrAlreadyFinished)", err)
	}
	if !mustGet(t, app, 1).Finished {
		t.Error("task 1 should be finished despite earlier failures")
	}
	if got := strings.Count(errOut.String(), "Error:"); got != 2 {
		t.Errorf("stderr reported %d errors, want 2: %q", got, errOut.String())
	}
}

func TestFinishInvalidID(t *testing.T) {
	app := setupTestApp(t)
	cmd := newFinishCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"x"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestFinishJSON(t *testing.T) {
	app := setupTestApp(t)
	app.JSON = true
	out := app.Out.(*bytes.Buffer)
	mustCreate(t, app, "a")

	cmd := newFinishCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	var tasks []taskstorage.Task
	if err := json.Unmarshal(out.Bytes(), &tasks); err != nil {
		t.Fatalf("bad JSON %q: %v", out.String(), err)
	}
	if len(tasks) != 1 || !tasks[0].Finished {
		t.Errorf("unexpected result %+v", tasks)
	}
}

func TestDeleteDetachesHierarchy(t *testing.T) {
	app := setupTestApp(t)
	ctx := t.Context()
	parent := mustCreate(t, app, "parent")
	child := mustCreate(t, app, "child")
	dep := mustCreate(t, app, "dependent")
	if err := app.Engine.AddSubtask(ctx, parent.ID, child.ID); err != nil {
		t.Fatal(err)
	}
	if err := app.Engine.AddDependency(ctx, child.ID, dep.ID); err != nil {
		t.Fatal(err)
	}

	cmd := newDeleteCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got := mustGet(t, app, child.ID)
	if !got.Deleted {
		t.Error("task not marked deleted")
	}
	if got.Parent != nil || mustGet(t, app, parent.ID).HasSubtask(child.ID) {
		t.Error("hierarchy link survived delete")
	}
	if mustGet(t, app, dep.ID).HasRequirement(child.ID) {
		t.Error("dependency edge survived delete")
	}

	cmd = newDeleteCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"1"})
	if err := cmd.Execute(); !errors.Is(err, taskstorage.ErrAlreadyDeleted) {
		t.Errorf("second delete error = %v, want ErrAlreadyDeleted", err)
	}
}

func TestPinUnpin(t *testing.T) {
	app := setupTestApp(t)
	mustCreate(t, app, "a")

	cmd := newPinCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if !mustGet(t, app, 0).Pinned {
		t.Fatal("task not pinned")
	}

	cmd = newUnpinCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unpin failed: %v", err)
	}
	if mustGet(t, app, 0).Pinned {
		t.Fatal("task still pinned")
	}
}
