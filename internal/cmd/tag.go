package cmd

import (
	"errors"
	"fmt"
	"strings"

	"taskgraph/internal/taskservice"

	"github.com/spf13/cobra"
)

// newTagCmd creates the tag command with subcommands.
func newTagCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage task tags",
		Long: `Manage task tags. Tags are free-form strings; a task never carries the
same tag twice.

Examples:
  tg tag add 3 urgent
  tg tag remove 3 urgent
  tg tag set 3 docs release   # Replace all tags
  tg tag list                 # Every tag in use`,
	}

	cmd.AddCommand(newTagAddCmd(provider))
	cmd.AddCommand(newTagRemoveCmd(provider))
	cmd.AddCommand(newTagSetCmd(provider))
	cmd.AddCommand(newTagListCmd(provider))

	return cmd
}

func newTagAddCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "add <id> <tag>",
		Short: "Add a tag to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tag := strings.TrimSpace(args[1])
			if tag == "" {
				return errors.New("tag cannot be empty")
			}
			task, err := app.Engine.AddTag(cmd.Context(), id, tag)
			if err != nil {
				return fmt.Errorf("tagging task %d: %w", id, err)
			}
			if app.JSON {
				return writeJSON(app, task)
			}
			fmt.Fprintf(app.Out, "%s Tagged task %d with %q\n", app.SuccessColor("✓"), id, tag)
			return nil
		},
	}
}

func newTagRemoveCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id> <tag>",
		Aliases: []string{"rm"},
		Short:   "Remove a tag from a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := app.Engine.RemoveTag(cmd.Context(), id, args[1])
			if err != nil {
				return fmt.Errorf("untagging task %d: %w", id, err)
			}
			if app.JSON {
				return writeJSON(app, task)
			}
			fmt.Fprintf(app.Out, "%s Removed %q from task %d\n", app.SuccessColor("✓"), args[1], id)
			return nil
		},
	}
}

func newTagSetCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> [tag...]",
		Short: "Replace all of a task's tags",
		Long:  `Replace all of a task's tags. With no tags, clears them.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tags := make([]string, 0, len(args)-1)
			for _, tag := range args[1:] {
				tag = strings.TrimSpace(tag)
				if tag == "" {
					return errors.New("tags cannot be empty")
				}
				tags = append(tags, tag)
			}
			task, err := app.Engine.Update(cmd.Context(), id, taskservice.TaskUpdate{Tags: &tags})
			if err != nil {
				return fmt.Errorf("setting tags on task %d: %w", id, err)
			}
			if app.JSON {
				return writeJSON(app, task)
			}
			if len(task.Tags) == 0 {
				fmt.Fprintf(app.Out, "%s Cleared tags on task %d\n", app.SuccessColor("✓"), id)
				return nil
			}
			fmt.Fprintf(app.Out, "%s Task %d tags: %s\n", app.SuccessColor("✓"), id, strings.Join(task.Tags, ", "))
			return nil
		},
	}
}

func newTagListCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tag used by a live task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			tags := app.Engine.AllTags()
			if app.JSON {
				if tags == nil {
					tags = []string{}
				}
				return writeJSON(app, tags)
			}
			if len(tags) == 0 {
				fmt.Fprintln(app.Out, "No tags.")
				return nil
			}
			for _, tag := range tags {
				fmt.Fprintln(app.Out, tag)
			}
			return nil
		},
	}
}
