package cmd

import (
	"fmt"
	"slices"

	"taskgraph/internal/settings"
	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"

	"github.com/spf13/cobra"
)

// newListCmd creates the list command.
func newListCmd(provider *AppProvider) *cobra.Command {
	var (
		all      bool
		finished bool
		deleted  bool
		tag      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks in id order.

By default lists tasks that are not deleted. Finished tasks are included
only when the show_finished setting is on (see 'tg settings'). The
show_tags, show_parents and show_blocked settings control how each line
is decorated.

Examples:
  tg list                 # Live tasks
  tg list --all           # Everything, including finished and deleted
  tg list --finished      # Only finished tasks
  tg list --deleted       # Only deleted tasks
  tg list --tag bug       # Tasks tagged bug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			if finished && deleted {
				return fmt.Errorf("--finished and --deleted are mutually exclusive")
			}

			view, err := settings.Load(cmd.Context(), app.Persist)
			if err != nil {
				return err
			}

			opts := taskservice.ListOptions{IncludeDeleted: all || deleted}
			var tasks []*taskstorage.Task
			for t := range app.Engine.List(opts) {
				switch {
				case deleted && !t.Deleted:
					continue
				case finished && !t.Finished:
					continue
				case !all && !finished && !deleted && t.Finished && !view.ShowFinished:
					continue
				case tag != "" && !slices.Contains(t.Tags, tag):
					continue
				}
				tasks = append(tasks, t)
			}

			if app.JSON {
				return writeTasksJSON(app, tasks)
			}

			if len(tasks) == 0 {
				fmt.Fprintln(app.Out, "No tasks found.")
				return nil
			}
			fmt.Fprintf(app.Out, "Tasks (%d):\n\n", len(tasks))
			printTasks(app, tasks, view)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include finished and deleted tasks")
	cmd.Flags().BoolVar(&finished, "finished", false, "Only finished tasks")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "Only deleted tasks")
	cmd.Flags().StringVar(&tag, "tag", "", "Only tasks carrying this tag")

	return cmd
}
