package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"taskgraph/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the config command with subcommands.
// Config commands don't open storage, so they work while the storage
// settings are wrong.
func newConfigCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or change configuration",
		Long: `View or change .taskgraph/config.yaml.

Every key can be overridden with an environment variable: storage.backend
is read from TG_STORAGE_BACKEND, log.level from TG_LOG_LEVEL, and so on.
'tg config show' prints the effective values; 'tg config set' edits only
the file.`,
	}

	cmd.AddCommand(newConfigShowCmd(provider))
	cmd.AddCommand(newConfigGetCmd(provider))
	cmd.AddCommand(newConfigSetCmd(provider))

	return cmd
}

// output returns where config commands print and whether to print JSON.
func (p *AppProvider) output() (io.Writer, bool) {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	jsonOut := p.JSONOutput
	if p.app != nil {
		jsonOut = jsonOut || p.app.JSON
	}
	return out, jsonOut
}

func newConfigShowCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := provider.Config()
			if err != nil {
				return err
			}
			out, jsonOut := provider.output()
			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigGetCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := provider.Config()
			if err != nil {
				return err
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			out, jsonOut := provider.output()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{args[0]: value})
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}
}

func newConfigSetCmd(provider *AppProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a value in config.yaml",
		Long: `Change a value in config.yaml. The new value is validated before the
file is written.

Examples:
  tg config set storage.backend sqlite
  tg config set delete.hierarchy keep
  tg config set storage.durability lenient`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := config.FindDataDir(provider.DataPath)
			if provider.app != nil {
				dataDir, err = provider.app.DataDir, nil
			}
			if err != nil {
				return err
			}

			cfg, err := config.ReadFile(dataDir)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Write(dataDir, cfg); err != nil {
				return err
			}

			out, jsonOut := provider.output()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{args[0]: args[1]})
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}
