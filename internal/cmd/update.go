package cmd

import (
	"errors"
	"fmt"
	"strings"

	"taskgraph/internal/taskservice"

	"github.com/spf13/cobra"
)

// newUpdateCmd creates the update command.
func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		description string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a task's description or tags",
		Long: `Change a task's description or replace its tags. Only the flags given
are changed. Relations are edited with 'tg dep' and 'tg subtask'.

Examples:
  tg update 3 --description "Write the release notes"
  tg update 3 --tags docs,release
  tg update 3 --tags ""            # Remove every tag`,
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

			var upd taskservice.TaskUpdate
			if cmd.Flags().Changed("description") {
				if strings.TrimSpace(description) == "" {
					return errors.New("description cannot be empty")
				}
				upd.Description = &description
			}
			if cmd.Flags().Changed("tags") {
				for _, tag := range tags {
					if strings.TrimSpace(tag) == "" {
						return errors.New("tags cannot be empty")
					}
				}
				upd.Tags = &tags
			}
			if upd.Description == nil && upd.Tags == nil {
				return errors.New("nothing to update: pass --description or --tags")
			}

			task, err := app.Engine.Update(cmd.Context(), id, upd)
			if err != nil {
				return fmt.Errorf("updating task %d: %w", id, err)
			}

			if app.JSON {
				return writeJSON(app, task)
			}
			fmt.Fprintf(app.Out, "%s Updated task %d\n", app.SuccessColor("✓"), task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Replace all tags (comma-separated)")

	return cmd
}
