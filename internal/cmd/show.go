package cmd

import (
	"fmt"
	"strings"
	"time"

	"taskgraph/internal/graph"
	"taskgraph/internal/taskstorage"

	"github.com/spf13/cobra"
)

// TaskJSON is a task with its computed state, as printed by show.
type TaskJSON struct {
	*taskstorage.Task
	State    graph.State `json:"state"`
	Blockers []int       `json:"blockers"`
}

// newShowCmd creates the show command.
func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show full details of a task",
		Long: `Display every field of a task, its relations and whether it is ready or
blocked. Deleted tasks can still be shown.

Examples:
  tg show 3
  tg show 3 --json`,
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
			blockers, err := app.Engine.Blockers(id)
			if err != nil {
				return err
			}
			blockerIDs := make([]int, 0, len(blockers))
			for _, b := range blockers {
				blockerIDs = append(blockerIDs, b.ID)
			}
			state := graph.Classify(app.Engine.Snapshot())[id]

			if app.JSON {
				return writeJSON(app, TaskJSON{Task: task, State: state, Blockers: blockerIDs})
			}

			fmt.Fprintf(app.Out, "Task %d: %s\n", task.ID, task.Description)
			fmt.Fprintf(app.Out, "  State:       %s\n", state)
			if task.TimeCreated != nil {
				fmt.Fprintf(app.Out, "  Created:     %s\n", task.TimeCreated.Local().Format(time.DateTime))
			}
			if task.TimeFinished != nil {
				fmt.Fprintf(app.Out, "  Finished:    %s\n", task.TimeFinished.Local().Format(time.DateTime))
			}
			if task.Pinned {
				fmt.Fprintln(app.Out, "  Pinned:      yes")
			}
			if len(task.Tags) > 0 {
				fmt.Fprintf(app.Out, "  Tags:        %s\n", strings.Join(task.Tags, ", "))
			}
			if len(task.Requirements) > 0 {
				fmt.Fprintf(app.Out, "  Requires:    %s\n", joinInts(task.Requirements))
			}
			if len(blockerIDs) > 0 {
				fmt.Fprintf(app.Out, "  Waiting on:  %s\n", app.WarnColor(joinInts(blockerIDs)))
			}
			if len(task.Dependents) > 0 {
				fmt.Fprintf(app.Out, "  Required by: %s\n", joinInts(task.Dependents))
			}
			if task.Parent != nil {
				fmt.Fprintf(app.Out, "  Parent:      %d\n", *task.Parent)
			}
			if len(task.Subtasks) > 0 {
				fmt.Fprintf(app.Out, "  Subtasks:    %s\n", joinInts(task.Subtasks))
			}
			return nil
		},
	}

	return cmd
}
