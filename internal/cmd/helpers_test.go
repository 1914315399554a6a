package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"taskgraph/internal/config"
	kvfs "taskgraph/internal/kvstorage/filesystem"
	"taskgraph/internal/settings"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"
	"taskgraph/internal/taskstorage/filesystem"
)

// setupTestApp creates an App over a fresh file backend in a temp dir.
func setupTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store := filesystem.New(dir)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}
	engine := taskservice.New(store)
	if err := engine.Load(ctx); err != nil {
		t.Fatalf("failed to load engine: %v", err)
	}
	kv, err := kvfs.New(dir, settings.Table)
	if err != nil {
		t.Fatalf("failed to create settings store: %v", err)
	}
	if err := kv.Init(ctx); err != nil {
		t.Fatalf("failed to init settings store: %v", err)
	}

	return &App{
		Engine:  engine,
		Backend: store,
		Persist: kv,
		Config:  config.Default(),
		DataDir: dir,
		Logger:  slog.New(slog.DiscardHandler),
		Out:     &bytes.Buffer{},
		Err:     &bytes.Buffer{},
	}
}

// mustCreate adds a task straight through the engine.
func mustCreate(t *testing.T, app *App, description string, tags ...string) *taskstorage.Task {
	t.Helper()
	task, err := app.Engine.Create(context.Background(), description, tags)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func mustGet(t *testing.T, app *App, id int) *taskstorage.Task {
	t.Helper()
	task, err := app.Engine.Get(id)
	if err != nil {
		t.Fatalf("failed to get task %d: %v", id, err)
	}
	return task
}

// resetOutput clears captured output between commands.
func resetOutput(app *App) {
	app.Out.(*bytes.Buffer).Reset()
	app.Err.(*bytes.Buffer).Reset()
}

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestFormatTask(t *testing.T) {
	app := setupTestApp(t)
	parent := mustCreate(t, app, "parent")
	child := mustCreate(t, app, "child", "web", "bug")
	if err := app.Engine.AddSubtask(context.Background(), parent.ID, child.ID); err != nil {
		t.Fatal(err)
	}
	child = mustGet(t, app, child.ID)

	line := formatTask(app, child, "blocked", fullView)
	for _, want := range []string{"child", "#web #bug", "(subtask of 0)", "[blocked]"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	bare := formatTask(app, child, "blocked", settings.Settings{})
	for _, unwanted := range []string{"#web", "subtask of", "[blocked]"} {
		if strings.Contains(bare, unwanted) {
			t.Errorf("line %q should not contain %q with decorations off", bare, unwanted)
		}
	}
}
