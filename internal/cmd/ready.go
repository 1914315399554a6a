package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newReadyCmd creates the ready command.
func newReadyCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List tasks that can be worked on now",
		Long: `List live, unfinished tasks whose requirements are all finished.
Requirements that were deleted no longer block.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			tasks := app.Engine.Ready()
			if app.JSON {
				return writeTasksJSON(app, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(app.Out, "No ready tasks.")
				return nil
			}
			fmt.Fprintf(app.Out, "Ready (%d):\n\n", len(tasks))
			printTasks(app, tasks, fullView)
			return nil
		},
	}

	return cmd
}

// BlockedJSON is one entry of blocked --json.
type BlockedJSON struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	WaitingOn   []int  `json:"waiting_on"`
}

// newBlockedCmd creates the blocked command.
func newBlockedCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List tasks waiting on unfinished requirements",
		Long: `List live, unfinished tasks with at least one unfinished requirement,
and what each one is waiting on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			tasks := app.Engine.Blocked()
			result := make([]BlockedJSON, 0, len(tasks))
			for _, t := range tasks {
				blockers, err := app.Engine.Blockers(t.ID)
				if err != nil {
					return err
				}
				entry := BlockedJSON{ID: t.ID, Description: t.Description, WaitingOn: []int{}}
				for _, b := range blockers {
					entry.WaitingOn = append(entry.WaitingOn, b.ID)
				}
				result = append(result, entry)
			}

			if app.JSON {
				return writeJSON(app, result)
			}
			if len(result) == 0 {
				fmt.Fprintln(app.Out, "No blocked tasks.")
				return nil
			}
			fmt.Fprintf(app.Out, "Blocked (%d):\n\n", len(result))
			for _, b := range result {
				fmt.Fprintf(app.Out, "  %4d %s  %s\n", b.ID, b.Description,
					app.WarnColor("(waiting on "+joinInts(b.WaitingOn)+")"))
			}
			return nil
		},
	}

	return cmd
}

// newPlanCmd creates the plan command.
func newPlanCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Order unfinished tasks so requirements come first",
		Long: `Print every live, unfinished task in an order where each task comes
after all of its requirements. Fails if the dependencies form a cycle;
run 'tg doctor' to find it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			tasks, err := app.Engine.Plan()
			if err != nil {
				return fmt.Errorf("planning: %w", err)
			}
			if app.JSON {
				return writeTasksJSON(app, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(app.Out, "Nothing left to do.")
				return nil
			}
			for i, t := range tasks {
				fmt.Fprintf(app.Out, "%3d. [%d] %s\n", i+1, t.ID, t.Description)
			}
			return nil
		},
	}

	return cmd
}
