package cmd

import (
	"fmt"
	"strings"

	"taskgraph/internal/graph"
	"taskgraph/internal/taskstorage"

	"github.com/spf13/cobra"
)

// newDepCmd creates the dep command with subcommands.
func newDepCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependencies between tasks",
		Long: `Manage dependencies between tasks.

A dependency says one task (the requirement) must finish before another
(the dependent) is ready. Both sides record the edge.

Adding a dependency does not check for cycles. A task on a cycle stays
blocked forever; 'tg doctor' reports cycles and 'tg plan' refuses to
order them.`,
	}

	cmd.AddCommand(newDepAddCmd(provider))
	cmd.AddCommand(newDepRemoveCmd(provider))
	cmd.AddCommand(newDepListCmd(provider))

	return cmd
}

func newDepAddCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "add <requirement> <dependent>",
		Short: "Make <dependent> wait for <requirement>",
		Long: `Make <dependent> wait for <requirement> to finish.

Example:
  tg dep add 1 2    # 2 is blocked until 1 is finished`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			req, dep, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.Engine.AddDependency(cmd.Context(), req, dep); err != nil {
				return fmt.Errorf("adding dependency: %w", err)
			}
			if app.JSON {
				return writeJSON(app, map[string]int{"requirement": req, "dependent": dep})
			}
			fmt.Fprintf(app.Out, "%s Task %d now requires %d\n", app.SuccessColor("✓"), dep, req)
			return nil
		},
	}
}

func newDepRemoveCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <requirement> <dependent>",
		Aliases: []string{"rm"},
		Short:   "Remove a dependency",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			req, dep, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			if err := app.Engine.RemoveDependency(cmd.Context(), req, dep); err != nil {
				return fmt.Errorf("removing dependency: %w", err)
			}
			if app.JSON {
				return writeJSON(app, map[string]int{"requirement": req, "dependent": dep})
			}
			fmt.Fprintf(app.Out, "%s Task %d no longer requires %d\n", app.SuccessColor("✓"), dep, req)
			return nil
		},
	}
}

// DepListJSON is the JSON output of dep list.
type DepListJSON struct {
	ID           int              `json:"id"`
	Requirements []int            `json:"requirements"`
	Dependents   []int            `json:"dependents"`
	Tree         []graph.TreeNode `json:"tree,omitempty"`
}

func newDepListCmd(provider *AppProvider) *cobra.Command {
	var tree bool

	cmd := &cobra.Command{
		Use:   "list <id>",
		Short: "Show a task's requirements and dependents",
		Long: `Show what a task requires and what requires it. With --tree, show every
transitive requirement indented by depth.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := app.Engine.Get(id)
			if err != nil {
				return err
			}

			var nodes []graph.TreeNode
			if tree {
				if nodes, err = app.Engine.RequirementTree(id); err != nil {
					return err
				}
			}

			if app.JSON {
				return writeJSON(app, DepListJSON{
					ID:           id,
					Requirements: task.Requirements,
					Dependents:   task.Dependents,
					Tree:         nodes,
				})
			}

			fmt.Fprintf(app.Out, "Task %d: %s\n", task.ID, task.Description)
			if tree {
				printTree(app, nodes)
			} else {
				printRelated(app, "Requires", task.Requirements)
			}
			printRelated(app, "Required by", task.Dependents)
			return nil
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, "Show transitive requirements")

	return cmd
}

// printRelated prints a labelled list of related task lines.
func printRelated(app *App, label string, ids []int) {
	if len(ids) == 0 {
		fmt.Fprintf(app.Out, "\n%s: none\n", label)
		return
	}
	fmt.Fprintf(app.Out, "\n%s:\n", label)
	printTasks(app, lookupAll(app, ids), fullView)
}

func printTree(app *App, nodes []graph.TreeNode) {
	if len(nodes) == 0 {
		fmt.Fprintln(app.Out, "\nRequires: none")
		return
	}
	fmt.Fprintln(app.Out, "\nRequires:")
	states := graph.Classify(app.Engine.Snapshot())
	for _, n := range nodes {
		t, err := app.Engine.Get(n.ID)
		if err != nil {
			fmt.Fprintf(app.Out, "%s %4d (missing)\n", strings.Repeat("  ", n.Depth-1), n.ID)
			continue
		}
		fmt.Fprintf(app.Out, "%s%s\n", strings.Repeat("  ", n.Depth-1), formatTask(app, t, states[t.ID], fullView))
	}
}

// lookupAll fetches the tasks for ids, skipping ids that don't resolve.
func lookupAll(app *App, ids []int) []*taskstorage.Task {
	tasks := make([]*taskstorage.Task, 0, len(ids))
	for _, id := range ids {
		if t, err := app.Engine.Get(id); err == nil {
			tasks = append(tasks, t)
		}
	}
	return tasks
}
