package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// DoctorResult represents the output of the doctor command.
type DoctorResult struct {
	Problems []string `json:"problems"`
	Fixed    bool     `json:"fixed"`
}

// newDoctorCmd creates the doctor command.
func newDoctorCmd(provider *AppProvider) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check for and fix inconsistencies",
		Long: `Check the task records for inconsistencies.

Checks for:
- Relations pointing at tasks that don't exist
- One-sided relations (a requirement the other task doesn't list as a dependent)
- Duplicate tags and relation entries, and tasks related to themselves
- Dependency edges and pins left on deleted tasks
- Tasks listed as subtasks of more than one parent
- Dependency and hierarchy cycles

With --fix, everything but cycles is repaired and saved. Cycles are only
reported; break them with 'tg dep remove' or 'tg subtask remove'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			problems, err := app.Engine.Doctor(cmd.Context(), fix)
			if err != nil {
				return fmt.Errorf("doctor failed: %w", err)
			}

			if app.JSON {
				if problems == nil {
					problems = []string{}
				}
				return writeJSON(app, DoctorResult{Problems: problems, Fixed: fix})
			}

			if len(problems) == 0 {
				fmt.Fprintln(app.Out, "No problems found.")
				return nil
			}

			var cycles, repairable []string
			for _, p := range problems {
				if strings.Contains(p, "cycle:") {
					cycles = append(cycles, p)
				} else {
					repairable = append(repairable, p)
				}
			}

			if fix {
				if len(repairable) > 0 {
					fmt.Fprintf(app.Out, "Fixed %d problems:\n", len(repairable))
					for _, p := range repairable {
						fmt.Fprintf(app.Out, "  - %s\n", p)
					}
				}
				if len(cycles) > 0 {
					fmt.Fprintf(app.Out, "%s\n", app.WarnColor(fmt.Sprintf("Cannot fix %d cycles:", len(cycles))))
					for _, p := range cycles {
						fmt.Fprintf(app.Out, "  - %s\n", p)
					}
				}
				return nil
			}

			fmt.Fprintf(app.Out, "Found %d problems:\n", len(problems))
			for _, p := range problems {
				fmt.Fprintf(app.Out, "  - %s\n", p)
			}
			if len(repairable) > 0 {
				fmt.Fprintln(app.Out, "\nRun 'tg doctor --fix' to fix these issues.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Fix problems (default is check only)")

	return cmd
}
