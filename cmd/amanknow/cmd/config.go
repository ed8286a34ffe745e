package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanknow/internal/config"
	amerrors "github.com/Aman-CERP/amanknow/internal/errors"
	"github.com/Aman-CERP/amanknow/internal/output"
)

// ProjectConfigFile is the per-directory configuration file name.
const ProjectConfigFile = ".amanknow.yaml"

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage amanknow configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/amanknow/config.yaml)
  3. Project config (.amanknow.yaml in the working directory)
  4. .env in the working directory
  5. Environment variables (AMANKNOW_*)
  6. --data-dir and --backend flags`,
		Example: `  # Write a project config with defaults
  amanknow config init

  # Show effective configuration
  amanknow config show --format json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with defaults",
		Long: `Write a configuration file populated with default values.

Writes .amanknow.yaml in the working directory, or the user config with
--user. An existing file is kept unless --force is given, in which case
it is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := ProjectConfigFile
			if user {
				path = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the project config")
	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	if _, err := os.Stat(abs); err == nil {
		if !force {
			return amerrors.New(amerrors.ErrCodeConfigInvalid, "configuration already exists: "+abs, nil).
				WithSuggestion("Use --force to overwrite it (a backup is kept).")
		}
		backup, err := config.BackupFile(abs)
		if err != nil {
			return amerrors.ConfigError("back up "+abs, err)
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	if err := config.NewConfig().WriteYAML(abs); err != nil {
		return amerrors.ConfigError("write "+abs, err)
	}
	out.Success("Wrote configuration")
	out.Statusf("📁", "Location: %s", abs)
	return nil
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "json":
				return output.New(cmd.OutOrStdout()).JSON(cfg)
			default:
				return amerrors.ValidationError(fmt.Sprintf("unknown format %q (supported: yaml, json)", format), nil)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, json")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
			_, _ = fmt.Fprintf(out, "project: %s\n", ProjectConfigFile)
			return nil
		},
	}
}
