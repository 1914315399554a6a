package taskstorage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// RunBackendContractTests runs the shared contract suite against a Backend.
// Each backend calls this with its own factory so that all of them agree
// on empty reads, overwrite semantics, and round-tripping.
func RunBackendContractTests(t *testing.T, factory func(t *testing.T) Backend) {
	t.Run("ReadEmpty", func(t *testing.T) { testReadEmpty(t, factory(t)) })
	t.Run("WriteRead", func(t *testing.T) { testWriteRead(t, factory(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, factory(t)) })
	t.Run("SnapshotRoundTrip", func(t *testing.T) { testSnapshotRoundTrip(t, factory(t)) })
}

func testReadEmpty(t *testing.T, b Backend) {
	defer b.Close()
	_, err := b.Read(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Read on empty backend: got %v, want ErrNoSnapshot", err)
	}
}

func testWriteRead(t *testing.T, b Backend) {
	defer b.Close()
	ctx := context.Background()

	data := []byte(`[{"id":0,"description":"buy milk"}]`)
	if err := b.Write(ctx, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	tasks, _, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Description != "buy milk" {
		t.Errorf("unexpected snapshot after round trip: %s", got)
	}
}

func testOverwrite(t *testing.T, b Backend) {
	defer b.Close()
	ctx := context.Background()

	if err := b.Write(ctx, []byte(`[{"id":0,"description":"first"}]`)); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := b.Write(ctx, []byte(`[]`)); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	got, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(bytes.TrimSpace(got)) != "[]" {
		t.Errorf("expected snapshot to be replaced, got %s", got)
	}
}

func testSnapshotRoundTrip(t *testing.T, b Backend) {
	defer b.Close()
	ctx := context.Background()

	parent := 0
	tasks := []*Task{
		{ID: 0, Description: "parent", Tags: []string{"home"}, Requirements: []int{}, Dependents: []int{1}, Subtasks: []int{1}},
		{ID: 1, Description: "child", Tags: []string{}, Requirements: []int{0}, Dependents: []int{}, Parent: &parent, Subtasks: []int{}},
	}
	data, err := Encode(tasks)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := b.Write(ctx, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	decoded, report, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if report.Migrated() {
		t.Errorf("a current snapshot should not need migration, got %+v", report.Records)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(decoded))
	}
	if decoded[1].Parent == nil || *decoded[1].Parent != 0 {
		t.Errorf("child parent = %v, want 0", decoded[1].Parent)
	}
	if !decoded[0].HasDependent(1) || !decoded[1].HasRequirement(0) {
		t.Errorf("dependency edge lost in round trip")
	}
}
