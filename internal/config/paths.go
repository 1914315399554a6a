package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the data directory searched for from the working directory.
const DirName = ".taskgraph"

// FindDataDir locates the .taskgraph directory. An explicit path wins,
// then TG_DIR, then the nearest .taskgraph found walking up from the
// current directory. An explicit path may name the data directory itself
// or a directory containing it.
func FindDataDir(path string) (string, error) {
	if path == "" {
		path = os.Getenv(EnvDir)
	}
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("cannot access data directory %s: %w", path, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("data path is not a directory: %s", path)
		}
		if filepath.Base(path) != DirName {
			if nested := filepath.Join(path, DirName); isDir(nested) {
				return nested, nil
			}
		}
		return path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}
	dir := cwd
	for {
		candidate := filepath.Join(dir, DirName)
		if isDir(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found (searched from %s to /); run 'tg init'", DirName, cwd)
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
