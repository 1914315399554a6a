package cmd

import (
	"fmt"
	"strings"

	"taskgraph/internal/taskstorage"

	"github.com/spf13/cobra"
)

// newAddCmd creates the add command.
func newAddCmd(provider *AppProvider) *cobra.Command {
	var (
		tags     []string
		requires []int
		parent   int
	)

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Create a new task",
		Long: `Create a new task. The new task gets the next id.

Arguments after the first are joined into the description, so quoting is
optional.

Examples:
  tg add "Write release notes"
  tg add Fix login redirect --tag bug --tag web
  tg add Deploy --requires 3 --requires 4   # blocked until 3 and 4 finish
  tg add "Update docs" --parent 7           # subtask of task 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			description := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				return fmt.Errorf("description cannot be empty")
			}
			for _, tag := range tags {
				if strings.TrimSpace(tag) == "" {
					return fmt.Errorf("tags cannot be empty")
				}
			}
			// Check relations up front so a bad id doesn't leave a
			// half-linked task behind.
			hasParent := cmd.Flags().Changed("parent")
			if hasParent {
				if err := checkLive(app, parent); err != nil {
					return fmt.Errorf("parent: %w", err)
				}
			}
			for _, req := range requires {
				if err := checkLive(app, req); err != nil {
					return fmt.Errorf("requirement: %w", err)
				}
			}

			task, err := app.Engine.Create(ctx, description, tags)
			if err != nil {
				return fmt.Errorf("creating task: %w", err)
			}
			for _, req := range requires {
				if err := app.Engine.AddDependency(ctx, req, task.ID); err != nil {
					return fmt.Errorf("task %d created, but adding requirement %d failed: %w", task.ID, req, err)
				}
			}
			if hasParent {
				if err := app.Engine.AddSubtask(ctx, parent, task.ID); err != nil {
					return fmt.Errorf("task %d created, but attaching to parent %d failed: %w", task.ID, parent, err)
				}
			}

			task, err = app.Engine.Get(task.ID)
			if err != nil {
				return err
			}

			if app.JSON {
				return writeJSON(app, task)
			}

			fmt.Fprintf(app.Out, "%s Created task %d: %s\n", app.SuccessColor("✓"), task.ID, task.Description)
			if len(task.Tags) > 0 {
				fmt.Fprintf(app.Out, "  Tags: %s\n", strings.Join(task.Tags, ", "))
			}
			if len(task.Requirements) > 0 {
				fmt.Fprintf(app.Out, "  Requires: %s\n", joinInts(task.Requirements))
			}
			if task.Parent != nil {
				fmt.Fprintf(app.Out, "  Parent: %d\n", *task.Parent)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "Tag for the task (repeatable)")
	cmd.Flags().IntSliceVarP(&requires, "requires", "r", nil, "Task that must finish first (repeatable)")
	cmd.Flags().IntVarP(&parent, "parent", "p", 0, "Make the new task a subtask of this task")

	return cmd
}

// checkLive fails unless id names an existing, undeleted task.
func checkLive(app *App, id int) error {
	t, err := app.Engine.Get(id)
	if err != nil {
		return err
	}
	if t.Deleted {
		return fmt.Errorf("task %d: %w", id, taskstorage.ErrAlreadyDeleted)
	}
	return nil
}
