package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// writeSnapshot replaces the stored snapshot and reloads the engine.
func writeSnapshot(t *testing.T, app *App, data string) {
	t.Helper()
	ctx := t.Context()
	if err := app.Backend.Write(ctx, []byte(data)); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	if err := app.Engine.Reload(ctx); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
}

func TestDoctorClean(t *testing.T) {
	app := setupTestApp(t)
	mustCreate(t, app, "a")

	if err := execute(t, newDoctorCmd(NewTestProvider(app))); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if got := app.Out.(*bytes.Buffer).String(); !strings.Contains(got, "No problems found.") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestDoctorFindsAndFixes(t *testing.T) {
	app := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	writeSnapshot(t, app, `[
		{"id": 0, "description": "a", "requirements": [1]},
		{"id": 1, "description": "b"}
	]`)

	if err := execute(t, newDoctorCmd(NewTestProvider(app))); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Found 1 problems:") || !strings.Contains(got, "tg doctor --fix") {
		t.Fatalf("unexpected check output:\n%s", got)
	}
	if mustGet(t, app, 1).HasDependent(0) {
		t.Fatal("check-only run must not repair")
	}

	resetOutput(app)
	if err := execute(t, newDoctorCmd(NewTestProvider(app)), "--fix"); err != nil {
		t.Fatalf("doctor --fix failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Fixed 1 problems:") {
		t.Errorf("unexpected fix output:\n%s", got)
	}

	resetOutput(app)
	if err := execute(t, newDoctorCmd(NewTestProvider(app))); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "No problems found.") {
		t.Errorf("problems remain after fix:\n%s", got)
	}
}

func TestDoctorReportsCyclesAsUnfixable(t *testing.T) {
	app := setupTestApp(t)
	out := app.Out.(*bytes.Buffer)
	ctx := t.Context()
	mustCreate(t, app, "a")
	mustCreate(t, app, "b")
	if err := app.Engine.AddDependency(ctx, 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := app.Engine.AddDependency(ctx, 1, 0); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, newDoctorCmd(NewTestProvider(app)), "--fix"); err != nil {
		t.Fatalf("doctor --fix failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Cannot fix 1 cycles:") || !strings.Contains(got, "dependency cycle: tasks 0, 1") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if !mustGet(t, app, 1).HasRequirement(0) {
		t.Error("doctor must not break cycles")
	}
}

func TestDoctorJSON(t *testing.T) {
	app := setupTestApp(t)
	app.JSON = true
	out := app.Out.(*bytes.Buffer)

	if err := execute(t, newDoctorCmd(NewTestProvider(app))); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	var result DoctorResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("bad JSON %q: %v", out.String(), err)
	}
	if result.Problems == nil || len(result.Problems) != 0 || result.Fixed {
		t.Errorf("unexpected result %+v", result)
	}
}
