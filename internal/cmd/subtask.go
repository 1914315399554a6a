package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSubtaskCmd creates the subtask command with subcommands.
func newSubtaskCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage the parent/subtask hierarchy",
		Long: `Manage the parent/subtask hierarchy. A task has at most one parent and
any number of subtasks. The hierarchy is independent of dependencies: a
parent is not blocked by its subtasks.`,
	}

	cmd.AddCommand(newSubtaskAddCmd(provider))
	cmd.AddCommand(newSubtaskRemoveCmd(provider))
	cmd.AddCommand(newSubtaskListCmd(provider))

	return cmd
}

func newSubtaskAddCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "add <parent> <child>",
		Short: "Make <child> a subtask of <parent>",
		Long: `Make <child> a subtask of <parent>. Fails if <child> already has a
parent; remove it from that parent first.

Example:
  tg subtask add 1 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			parent, child, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.Engine.AddSubtask(cmd.Context(), parent, child); err != nil {
				return fmt.Errorf("adding subtask: %w", err)
			}
			if app.JSON {
				return writeJSON(app, map[string]int{"parent": parent, "child": child})
			}
			fmt.Fprintf(app.Out, "%s Task %d is now a subtask of %d\n", app.SuccessColor("✓"), child, parent)
			return nil
		},
	}
}

func newSubtaskRemoveCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <parent> <child>",
		Aliases: []string{"rm"},
		Short:   "Detach <child> from <parent>",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			parent, child, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.Engine.RemoveSubtask(cmd.Context(), parent, child); err != nil {
				return fmt.Errorf("removing subtask: %w", err)
			}
			if app.JSON {
				return writeJSON(app, map[string]int{"parent": parent, "child": child})
			}
			fmt.Fprintf(app.Out, "%s Task %d is no longer a subtask of %d\n", app.SuccessColor("✓"), child, parent)
			return nil
		},
	}
}

func newSubtaskListCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "List every subtask of a task, recursively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tasks, err := app.Engine.Descendants(id)
			if err != nil {
				return err
			}
			if app.JSON {
				return writeTasksJSON(app, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintf(app.Out, "Task %d has no subtasks.\n", id)
				return nil
			}
			fmt.Fprintf(app.Out, "Subtasks of %d (%d):\n\n", id, len(tasks))
			printTasks(app, tasks, fullView)
			return nil
		},
	}
}
