// Package cmd provides CLI command implementations.
package cmd

import (
	"github.com/spf13/cobra"

	cfgcmd "github.com/opmodel/modprog/internal/cmd/config"
	"github.com/opmodel/modprog/internal/cmd/gen"
	"github.com/opmodel/modprog/internal/config"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/version"
)

// NewRootCmd creates the root command for modprog.
func NewRootCmd() *cobra.Command {
	var (
		cfg           config.GlobalConfig
		timestampsVal bool
	)

	rootCmd := &cobra.Command{
		Use:   "modprog",
		Short: "Modular program relay generator",
		Long: `modprog assembles a program from a primary module and a list of
secondary units.

For every exported instruction of every listed unit it generates a relay
function in the primary module, then writes the merged primary module,
with its instruction registry, to <primary>_gen.go.

Typical use is a go:generate line in the primary file:

  //go:generate go run github.com/opmodel/modprog/cmd/modprog generate program.go`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if c.Flags().Changed("timestamps") {
				cfg.Timestamps = output.BoolPtr(timestampsVal)
			}
			return initializeGlobals(&cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.ConfigFlag, "config", "c", "", "Path to config file (env: MODPROG_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&timestampsVal, "timestamps", true, "Show timestamps in log output (env: MODPROG_LOG_TIMESTAMPS)")

	rootCmd.AddCommand(gen.NewGenerateCmd(&cfg))
	rootCmd.AddCommand(gen.NewPlanCmd(&cfg))
	rootCmd.AddCommand(cfgcmd.NewConfigCmd(&cfg))
	rootCmd.AddCommand(NewVersionCmd(&cfg))

	return rootCmd
}

// initializeGlobals sets up logging from flags and environment. The config
// file is loaded per command once the project root is known.
func initializeGlobals(cfg *config.GlobalConfig) error {
	s := config.Resolve(config.FlagValues{Timestamps: cfg.Timestamps}, nil)

	logCfg := output.LogConfig{Verbose: cfg.Verbose}
	if cfg.Timestamps != nil || !s.Timestamps {
		logCfg.Timestamps = output.BoolPtr(s.Timestamps)
	}
	output.SetupLogging(logCfg)

	info := version.Get()
	output.Debug("modprog started",
		"version", info.Version,
		"cue_sdk", info.CUESDKVersion,
	)
	return nil
}
