package cmd

import (
	"fmt"

	"taskgraph/internal/settings"

	"github.com/spf13/cobra"
)

// newSettingsCmd creates the settings command with subcommands.
func newSettingsCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View or change display settings",
		Long: `View or change the display settings used by 'tg list'.

Keys:
  show_tags      Show tags on each line (default true)
  show_parents   Show a subtask's parent (default true)
  show_blocked   Mark blocked tasks (default true)
  show_finished  Include finished tasks without --finished (default false)

Settings are shared with the HTTP API (GET/PATCH /v1/settings).
'tg settings reset' restores the defaults.`,
	}

	cmd.AddCommand(newSettingsShowCmd(provider))
	cmd.AddCommand(newSettingsSetCmd(provider))
	cmd.AddCommand(newSettingsResetCmd(provider))

	return cmd
}

func newSettingsShowCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every display setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			s, err := settings.Load(cmd.Context(), app.Persist)
			if err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app, s)
			}
			for _, key := range settings.Keys() {
				v, _ := s.Get(key)
				fmt.Fprintf(app.Out, "%-14s %t\n", key, v)
			}
			return nil
		},
	}
}

func newSettingsSetCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a display setting",
		Long: `Change a display setting. Values are booleans (true/false, 1/0).

Example:
  tg settings set show_finished true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := settings.Load(ctx, app.Persist)
			if err != nil {
				return err
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := settings.Save(ctx, app.Persist, s); err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app, s)
			}
			v, _ := s.Get(args[0])
			fmt.Fprintf(app.Out, "%s %s = %t\n", app.SuccessColor("✓"), args[0], v)
			return nil
		},
	}
}

func newSettingsResetCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default display settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := settings.Reset(ctx, app.Persist); err != nil {
				return err
			}
			s, err := settings.Load(ctx, app.Persist)
			if err != nil {
				return err
			}
			if app.JSON {
				return writeJSON(app, s)
			}
			fmt.Fprintf(app.Out, "%s Settings reset to defaults\n", app.SuccessColor("✓"))
			return nil
		},
	}
}
