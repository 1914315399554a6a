package cmd

import (
	"context"
	"fmt"

	"taskgraph/internal/taskstorage"

	"github.com/spf13/cobra"
)

// newFinishCmd creates the finish command.
func newFinishCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finish <id> [id...]",
		Short: "Mark one or more tasks finished",
		Long: `Mark tasks finished and record the finish time. Finishing a task can
make its dependents ready.

Every id is attempted; the command fails if any of them failed.

Examples:
  tg finish 3
  tg finish 3 4 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			return applyEach(cmd.Context(), app, args, "Finished", "finishing", app.Engine.Finish)
		},
	}

	return cmd
}

// applyEach runs op on every id argument, reporting each outcome. It
// returns the first error after trying them all.
func applyEach(ctx context.Context, app *App, args []string, done, doing string,
	op func(context.Context, int) (*taskstorage.Task, error)) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	var (
		changed  []*taskstorage.Task
		firstErr error
	)
	for _, id := range ids {
		task, err := op(ctx, id)
		if err != nil {
			err = fmt.Errorf("%s task %d: %w", doing, id, err)
			if firstErr == nil {
				firstErr = err
			}
			if !app.JSON {
				fmt.Fprintf(app.Err, "Error: %v\n", err)
			}
			continue
		}
		changed = append(changed, task)
		if !app.JSON {
			fmt.Fprintf(app.Out, "%s %s task %d: %s\n", app.SuccessColor("✓"), done, task.ID, task.Description)
		}
	}

	if app.JSON {
		if err := writeTasksJSON(app, changed); err != nil {
			return err
		}
	}
	return firstErr
}
