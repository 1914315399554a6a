package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindDataDir_ExplicitPath(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), DirName)
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := FindDataDir(dataDir)
	if err != nil {
		t.Fatalf("FindDataDir(%q) error: %v", dataDir, err)
	}
	if result != dataDir {
		t.Errorf("FindDataDir(%q) = %q, want %q", dataDir, result, dataDir)
	}
}

func TestFindDataDir_ExplicitRepoPath(t *testing.T) {
	repo := t.TempDir()
	dataDir := filepath.Join(repo, DirName)
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := FindDataDir(repo)
	if err != nil {
		t.Fatalf("FindDataDir(%q) error: %v", repo, err)
	}
	if result != dataDir {
		t.Errorf("FindDataDir(%q) = %q, want %q", repo, result, dataDir)
	}
}

func TestFindDataDir_ExplicitPath_NotExist(t *testing.T) {
	if _, err := FindDataDir(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Error("FindDataDir with non-existent path should return error")
	}
}

func TestFindDataDir_ExplicitPath_NotDir(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "afile")
	if err := os.WriteFile(filePath, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := FindDataDir(filePath); err == nil {
		t.Error("FindDataDir with file path should return error")
	}
}

func TestFindDataDir_Env(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), DirName)
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDir, dataDir)

	result, err := FindDataDir("")
	if err != nil {
		t.Fatalf("FindDataDir with %s: %v", EnvDir, err)
	}
	if result != dataDir {
		t.Errorf("FindDataDir = %q, want %q", result, dataDir)
	}
}

func TestFindDataDir_WalkUp(t *testing.T) {
	t.Setenv(EnvDir, "")
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, DirName)
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	deepDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(deepDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(deepDir)

	result, err := FindDataDir("")
	if err != nil {
		t.Fatalf("FindDataDir(\"\") error: %v", err)
	}

	// Resolve symlinks for comparison (e.g., /var -> /private/var on macOS)
	wantResolved, _ := filepath.EvalSymlinks(dataDir)
	gotResolved, _ := filepath.EvalSymlinks(result)
	if gotResolved != wantResolved {
		t.Errorf("FindDataDir(\"\") = %q, want %q", result, dataDir)
	}
}

func TestFindDataDir_NotFound(t *testing.T) {
	t.Setenv(EnvDir, "")
	deepDir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := os.MkdirAll(deepDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(deepDir)

	if _, err := FindDataDir(""); err == nil {
		t.Error("FindDataDir should return error when no data directory found")
	}
}
