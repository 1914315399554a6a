package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"taskgraph/internal/config"
	kvfs "taskgraph/internal/kvstorage/filesystem"
	"taskgraph/internal/settings"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"
	"taskgraph/internal/taskstorage/filesystem"
	"taskgraph/internal/taskstorage/postgres"
	"taskgraph/internal/taskstorage/sqlite"

	"github.com/spf13/cobra"
)

// sqliteFileName is the database file used when storage.path is unset.
const sqliteFileName = "tasks.db"

// AppProvider lazily initializes the App on first use.
type AppProvider struct {
	once sync.Once
	app  *App
	err  error

	// Config captured from flags before Execute()
	DataPath   string
	JSONOutput bool
	Verbose    bool
	Out        io.Writer
	Err        io.Writer
}

// Get returns the App, initializing it on first call.
func (p *AppProvider) Get() (*App, error) {
	p.once.Do(func() {
		if p.app == nil {
			p.app, p.err = p.init()
		}
	})
	return p.app, p.err
}

// Close releases the App if it was initialized.
func (p *AppProvider) Close() error {
	if p.app == nil {
		return nil
	}
	return p.app.Close()
}

// Config resolves the data directory and loads the configuration without
// opening storage, so a broken storage setting can still be inspected and
// fixed.
func (p *AppProvider) Config() (string, config.Config, error) {
	if p.app != nil {
		return p.app.DataDir, p.app.Config, nil
	}
	dataDir, err := config.FindDataDir(p.DataPath)
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := config.Load(dataDir)
	return dataDir, cfg, err
}

// NewTestProvider creates a provider pre-initialized with the given App.
// Used for testing commands with a test App.
func NewTestProvider(app *App) *AppProvider {
	return &AppProvider{
		app: app,
		Out: app.Out,
		Err: app.Err,
	}
}

func (p *AppProvider) init() (*App, error) {
	ctx := context.Background()

	dataDir, err := config.FindDataDir(p.DataPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}

	logger, err := newLogger(cfg.Log, p.Verbose, errOut)
	if err != nil {
		return nil, err
	}

	hierarchy, err := taskservice.ParseHierarchyPolicy(cfg.Delete.Hierarchy)
	if err != nil {
		return nil, err
	}
	durability, err := taskservice.ParseDurability(cfg.Storage.Durability)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg.Storage, dataDir)
	if err != nil {
		return nil, err
	}
	engine := taskservice.New(backend,
		taskservice.WithHierarchyPolicy(hierarchy),
		taskservice.WithDurability(durability),
		taskservice.WithLogger(logger))
	if err := engine.Load(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	persist, err := kvfs.New(dataDir, settings.Table)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := persist.Init(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("initializing settings store: %w", err)
	}

	jsonOut := p.JSONOutput
	if !jsonOut {
		jsonOut, _ = strconv.ParseBool(os.Getenv(config.EnvJSON))
	}

	return &App{
		Engine:  engine,
		Backend: backend,
		Persist: persist,
		Config:  cfg,
		DataDir: dataDir,
		Logger:  logger,
		Out:     out,
		Err:     errOut,
		JSON:    jsonOut,
	}, nil
}

// newLogger builds the process logger from the log config. verbose forces
// debug level.
func newLogger(cfg config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openBackend opens the snapshot backend named by storage.backend.
// For the file and sqlite backends storage.path is a file location
// relative to dataDir; for postgres it names the snapshot row.
func openBackend(ctx context.Context, cfg config.StorageConfig, dataDir string) (taskstorage.Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		fs := filesystem.New(dataDir, filesystem.WithFileName(cfg.Path))
		if err := fs.Init(ctx); err != nil {
			return nil, fmt.Errorf("initializing file storage: %w", err)
		}
		return fs, nil
	case config.BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = sqliteFileName
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DSN, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Execute runs the CLI.
func Execute() error {
	provider := &AppProvider{
		Out: os.Stdout,
		Err: os.Stderr,
	}
	defer provider.Close()

	rootCmd := newRootCmd(provider)
	return rootCmd.Execute()
}

// newRootCmd creates the root command with all subcommands.
func newRootCmd(provider *AppProvider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tg",
		Short: "A task tracker with dependencies and subtasks",
		Long: `taskgraph tracks tasks with tags, dependencies between tasks, and a
parent/subtask hierarchy. Tasks are never removed: deleting a task marks it
deleted and keeps its id.

Data lives in the nearest .taskgraph directory (see 'tg init'), stored as a
JSON snapshot, a SQLite database or a PostgreSQL row depending on
storage.backend in .taskgraph/config.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - these populate the provider config
	rootCmd.PersistentFlags().BoolVar(&provider.JSONOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider.DataPath, "path", "", "Path to repo or .taskgraph directory (default: search from cwd)")
	rootCmd.PersistentFlags().BoolVarP(&provider.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newInitCmd(provider))
	rootCmd.AddCommand(newAddCmd(provider))
	rootCmd.AddCommand(newShowCmd(provider))
	rootCmd.AddCommand(newListCmd(provider))
	rootCmd.AddCommand(newUpdateCmd(provider))
	rootCmd.AddCommand(newFinishCmd(provider))
	rootCmd.AddCommand(newDeleteCmd(provider))
	rootCmd.AddCommand(newPinCmd(provider))
	rootCmd.AddCommand(newUnpinCmd(provider))
	rootCmd.AddCommand(newDepCmd(provider))
	rootCmd.AddCommand(newSubtaskCmd(provider))
	rootCmd.AddCommand(newTagCmd(provider))
	rootCmd.AddCommand(newReadyCmd(provider))
	rootCmd.AddCommand(newBlockedCmd(provider))
	rootCmd.AddCommand(newPlanCmd(provider))
	rootCmd.AddCommand(newDoctorCmd(provider))
	rootCmd.AddCommand(newExportCmd(provider))
	rootCmd.AddCommand(newSettingsCmd(provider))
	rootCmd.AddCommand(newConfigCmd(provider))
	rootCmd.AddCommand(newServeCmd(provider))
	rootCmd.AddCommand(newWatchCmd(provider))

	return rootCmd
}
