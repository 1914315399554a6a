package cmd

import (
	"github.com/spf13/cobra"
)

// newDeleteCmd creates the delete command.
func newDeleteCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Delete one or more tasks",
		Long: `Mark tasks deleted. A deleted task keeps its id and can still be shown,
but it no longer appears in lists or views.

Deleting a task removes its dependency edges and unpins it. Its parent and
subtask links follow delete.hierarchy in config.yaml: "detach" (default)
removes them on both sides, "keep" leaves them in place.

Examples:
  tg delete 3
  tg delete 3 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			return applyEach(cmd.Context(), app, args, "Deleted", "deleting", app.Engine.Delete)
		},
	}

	return cmd
}
