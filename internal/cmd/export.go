package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"taskgraph/internal/taskservice"
	"taskgraph/internal/taskstorage"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// exportDoc is the YAML and TOML export document. TOML needs a table at
// the top level, so tasks sit under a key rather than at the root.
type exportDoc struct {
	Version int          `yaml:"version" toml:"version"`
	Tasks   []exportTask `yaml:"tasks" toml:"tasks"`
}

type exportTask struct {
	ID           int        `yaml:"id" toml:"id"`
	Description  string     `yaml:"description" toml:"description"`
	Finished     bool       `yaml:"finished" toml:"finished"`
	TimeCreated  *time.Time `yaml:"time_created,omitempty" toml:"time_created,omitempty"`
	TimeFinished *time.Time `yaml:"time_finished,omitempty" toml:"time_finished,omitempty"`
	Tags         []string   `yaml:"tags" toml:"tags"`
	Requirements []int      `yaml:"requirements" toml:"requirements"`
	Dependents   []int      `yaml:"dependents" toml:"dependents"`
	Parent       *int       `yaml:"parent,omitempty" toml:"parent,omitempty"`
	Subtasks     []int      `yaml:"subtasks" toml:"subtasks"`
	Pinned       bool       `yaml:"pinned" toml:"pinned"`
	Deleted      bool       `yaml:"deleted" toml:"deleted"`
}

func toExportTask(t *taskstorage.Task) exportTask {
	return exportTask{
		ID:           t.ID,
		Description:  t.Description,
		Finished:     t.Finished,
		TimeCreated:  t.TimeCreated,
		TimeFinished: t.TimeFinished,
		Tags:         t.Tags,
		Requirements: t.Requirements,
		Dependents:   t.Dependents,
		Parent:       t.Parent,
		Subtasks:     t.Subtasks,
		Pinned:       t.Pinned,
		Deleted:      t.Deleted,
	}
}

// encodeTasks renders every task in the given format. JSON output is the
// snapshot format the storage backends hold.
func encodeTasks(tasks []*taskstorage.Task, format string) ([]byte, error) {
	if format == FormatJSON {
		return taskstorage.Encode(tasks)
	}

	doc := exportDoc{Version: taskstorage.CurrentSchemaVersion, Tasks: make([]exportTask, 0, len(tasks))}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, toExportTask(t))
	}

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding toml: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown format %q (must be %s, %s or %s)", format, FormatJSON, FormatYAML, FormatTOML)
}

// newExportCmd creates the export command.
func newExportCmd(provider *AppProvider) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task as JSON, YAML or TOML",
		Long: `Write every task, including finished and deleted ones, to stdout or a
file. JSON output is the same snapshot document the file backend stores.

Examples:
  tg export                          # JSON to stdout
  tg export --format yaml
  tg export --format toml -o tasks.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			tasks := app.Engine.Tasks(taskservice.ListOptions{IncludeDeleted: true})
			data, err := encodeTasks(tasks, format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := app.Out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(app.Err, "Exported %d %s to %s\n", len(tasks), plural(len(tasks)), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatJSON, "Output format: json, yaml or toml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}
