package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"taskgraph/internal/config"
	kvfs "taskgraph/internal/kvstorage/filesystem"
	"taskgraph/internal/settings"
	"taskgraph/internal/taskstorage/filesystem"

	"github.com/spf13/cobra"
)

// newInitCmd creates the init command.
// Note: init doesn't use the provider since it creates the .taskgraph directory.
func newInitCmd(provider *AppProvider) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new taskgraph repository",
		Long: `Initialize a new taskgraph repository in the current directory.

Creates .taskgraph/ with a default config.yaml, an empty task snapshot and
the default display settings. Use --path (or TG_DIR) to initialize
somewhere else.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := provider.Out
			if out == nil {
				out = os.Stdout
			}
			return runInit(cmd.Context(), out, provider.DataPath, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if .taskgraph exists, resetting config.yaml")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, path string, force bool) error {
	// Path resolution: --path > TG_DIR > CWD
	basePath := path
	if basePath == "" {
		basePath = os.Getenv(config.EnvDir)
	}
	if basePath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		basePath = cwd
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	dataDir := absPath
	if filepath.Base(dataDir) != config.DirName {
		dataDir = filepath.Join(absPath, config.DirName)
	}

	if _, err := os.Stat(dataDir); err == nil {
		if !force {
			return errors.New("taskgraph repository already exists (use --force to reinitialize)")
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", dataDir, err)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dataDir, err)
	}
	if err := config.WriteDefault(dataDir); err != nil {
		return err
	}

	// The snapshot itself is written on the first mutation; an absent
	// snapshot loads as an empty store.
	if err := filesystem.New(dataDir).Init(ctx); err != nil {
		return fmt.Errorf("initializing task storage: %w", err)
	}

	kv, err := kvfs.New(dataDir, settings.Table)
	if err != nil {
		return err
	}
	if err := kv.Init(ctx); err != nil {
		return fmt.Errorf("initializing settings store: %w", err)
	}
	if _, err := settings.Init(ctx, kv); err != nil {
		return err
	}

	fmt.Fprintf(out, "Initialized taskgraph repository in %s\n", dataDir)
	return nil
}
