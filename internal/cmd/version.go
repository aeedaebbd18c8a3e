package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opmodel/modprog/internal/config"
	"github.com/opmodel/modprog/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd(_ *config.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Show modprog version information.

Displays:
  - modprog version, commit, and build date
  - Go and CUE SDK versions`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := c.OutOrStdout().Write([]byte(version.Get().String() + "\n"))
			return err
		},
	}
}
