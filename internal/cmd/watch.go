package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskgraph/internal/taskstorage/filesystem"

	"github.com/spf13/cobra"
)

// newWatchCmd creates the watch command.
func newWatchCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the ready list whenever tasks change",
		Long: `Print the ready tasks, then print them again every time the snapshot
changes, until interrupted. Only the file backend can be watched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			fs, ok := app.Backend.(*filesystem.FilesystemStorage)
			if !ok {
				return errors.New("watch requires storage.backend: file")
			}

			w, err := fs.Watch()
			if err != nil {
				return fmt.Errorf("watching %s: %w", fs.Path(), err)
			}
			defer w.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, app, w.Changes)
		},
	}

	return cmd
}

// runWatch prints the ready list now and after each change until ctx is
// done or changes is closed.
func runWatch(ctx context.Context, app *App, changes <-chan struct{}) error {
	printReady(app)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := app.Engine.Reload(ctx); err != nil {
				app.Logger.Warn("reloading tasks", "error", err)
				continue
			}
			printReady(app)
		}
	}
}

func printReady(app *App) {
	tasks := app.Engine.Ready()
	if app.JSON {
		if err := writeTasksJSON(app, tasks); err != nil {
			app.Logger.Warn("writing ready list", "error", err)
		}
		return
	}
	fmt.Fprintf(app.Out, "-- %s: %d ready --\n", time.Now().Format(time.TimeOnly), len(tasks))
	printTasks(app, tasks, fullView)
}
