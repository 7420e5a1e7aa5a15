package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/grantlens/configs"
	"github.com/Aman-CERP/grantlens/internal/config"
	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
	"github.com/Aman-CERP/grantlens/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage grantlens configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/grantlens/config.yaml)
  3. Project config (.grantlens.yaml, or --config)
  4. Environment variables (GRANTLENS_*)`,
		Example: `  # Create the user config from the template
  grantlens config init

  # Create .grantlens.yaml in the working directory
  grantlens config init --project

  # Show the effective configuration
  grantlens config show

  # Print the user config path
  grantlens config path

  # Undo the last 'config init --force'
  grantlens config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file from the template",
		Long: `Write the commented configuration template.

By default the user config is created at ~/.config/grantlens/config.yaml
(or $XDG_CONFIG_HOME/grantlens/config.yaml). With --project the file is
.grantlens.yaml in the working directory. An existing file is kept unless
--force is given, in which case it is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				path = config.ProjectConfigName
			}
			return runConfigInit(output.New(cmd.OutOrStdout()), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (a backup is kept)")
	cmd.Flags().BoolVar(&project, "project", false, "Write .grantlens.yaml in the working directory")

	return cmd
}

func runConfigInit(out *output.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.KeyValue("Location", path)
			out.Status("", "Use --force to replace it with the template (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(path)
		if err != nil {
			return err
		}
		out.KeyValue("Backup", backup)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.KeyValue("Location", path)
	out.Status("", "Set corpus.path and the llm section, then run 'grantlens doctor'")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show configuration as YAML.

--source merged (default) shows every layer combined, user shows only the
user config file and defaults shows the built-in values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, desc, err := configForSource(source)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cfg == nil {
				out := output.New(w)
				out.Warning("No user configuration file found")
				out.KeyValue("Expected at", config.GetUserConfigPath())
				out.Status("", "Run 'grantlens config init' to create one")
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, _ = fmt.Fprintf(w, "# source: %s\n", desc)
			_, err = w.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, defaults")

	return cmd
}

// configForSource returns nil without error when the user file is absent.
func configForSource(source string) (*config.Config, string, error) {
	switch source {
	case "merged":
		cfg, err := config.Load(".", configPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, "merged (defaults + user + project + env)", nil
	case "user":
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return nil, "", err
		}
		return cfg, "user (" + config.GetUserConfigPath() + ")", nil
	case "defaults":
		return config.NewConfig(), "defaults", nil
	default:
		return nil, "", grerrors.ValidationError("unknown config source: "+source, nil).
			WithSuggestion("Use --source merged, user or defaults")
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var project bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the newest configuration backup",
		Long: `Restore the newest backup made by 'config init --force'. The current
file is itself backed up first, so a restore can be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if project {
				path = config.ProjectConfigName
			}
			out := output.New(cmd.OutOrStdout())

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				out.Warning("No backups found")
				out.KeyValue("Location", path)
				return nil
			}
			if err := config.RestoreBackup(path, backups[0]); err != nil {
				return err
			}
			out.Success("Restored configuration")
			out.KeyValue("From", backups[0])
			out.KeyValue("Location", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&project, "project", false, "Restore .grantlens.yaml in the working directory")

	return cmd
}
