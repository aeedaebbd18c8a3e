// Package config provides CLI command implementations for the config command group.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opmodel/modprog/internal/config"
	"github.com/opmodel/modprog/internal/resolve"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd(cfg *config.GlobalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  `Configuration management for modprog projects.`,
	}

	c.AddCommand(NewConfigInitCmd(cfg))
	c.AddCommand(NewConfigVetCmd(cfg))

	return c
}

// configPath resolves the config file: --config, MODPROG_CONFIG, then
// modprog.yaml at the project root enclosing the working directory.
func configPath(cfg *config.GlobalConfig) (string, error) {
	root := os.Getenv(config.EnvProjectRoot)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
		if mod, err := resolve.FindGoModule(wd); err == nil {
			root = mod.Dir
		}
	}

	res, err := config.ResolveConfigPath(cfg.ConfigFlag, root)
	if err != nil {
		return "", err
	}
	path, err := config.ExpandPath(res.ConfigPath)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}
