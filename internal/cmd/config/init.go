package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/output"
)

// NewConfigInitCmd creates the config init command.
func NewConfigInitCmd(cfg *config.GlobalConfig) *cobra.Command {
	var force bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Create a modprog configuration file",
		Long: `Create a modprog.yaml with default values.

The file is created at the root of the enclosing Go module by default.
Use --config to specify a different location.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runInit(c, cfg, force)
		},
	}

	c.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return c
}

func runInit(c *cobra.Command, cfg *config.GlobalConfig, force bool) error {
	path, err := configPath(cfg)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	exists, err := config.FileExists(path)
	if err != nil {
		return fmt.Errorf("checking config file: %w", err)
	}
	if exists && !force {
		return oerrors.NewExitError(
			fmt.Errorf("config file already exists at %s (use --force to overwrite)", path),
			oerrors.ExitGeneralError,
		)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	header := []byte("# modprog configuration\n# Values here are overridden by MODPROG_* environment variables and flags.\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		if os.IsPermission(err) {
			return oerrors.NewExitError(
				oerrors.NewPermissionError("cannot write config file", map[string]string{"path": path}, ""),
				oerrors.ExitPermissionDenied,
			)
		}
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintln(c.OutOrStdout(), output.FormatCheckmark("Config file created: "+path))
	return nil
}
