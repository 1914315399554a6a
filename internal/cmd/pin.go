package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPinCmd creates the pin command.
func newPinCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin a task",
		Long: `Pin a task so it stands out in lists (marked with *). Deleted tasks
cannot be pinned.`,
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
			task, err := app.Engine.Pin(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("pinning task %d: %w", id, err)
			}
			if app.JSON {
				return writeJSON(app, task)
			}
			fmt.Fprintf(app.Out, "%s Pinned task %d\n", app.SuccessColor("✓"), task.ID)
			return nil
		},
	}

	return cmd
}

// newUnpinCmd creates the unpin command.
func newUnpinCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpin <id>",
		Short: "Unpin a task",
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
			task, err := app.Engine.Unpin(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("unpinning task %d: %w", id, err)
			}
			if app.JSON {
				return writeJSON(app, task)
			}
			fmt.Fprintf(app.Out, "%s Unpinned task %d\n", app.SuccessColor("✓"), task.ID)
			return nil
		},
	}

	return cmd
}
