// Package gen provides the generate and plan commands.
package gen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/pipeline"
	"github.com/opmodel/modprog/internal/relay"
	"github.com/opmodel/modprog/internal/resolve"
)

// DefaultPrimary is the primary file used when none is given.
const DefaultPrimary = "program.go"

// ProgramFlags holds flags common to commands that run the pipeline
// (generate, plan).
type ProgramFlags struct {
	Modules     string
	ProjectRoot string
	SourceRoot  string
	Extension   string
	RelayMode   string
	Framework   string
}

// AddTo registers the program flags on the given cobra command.
func (f *ProgramFlags) AddTo(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Modules, "modules", "m", "",
		"Module list overriding the primary's //modprog:program directive")
	cmd.Flags().StringVar(&f.ProjectRoot, "project-root", "",
		"Project root (env: MODPROG_PROJECT_ROOT, default: go.mod directory)")
	cmd.Flags().StringVar(&f.SourceRoot, "source-root", "",
		"Directory of secondary units under the project root (env: MODPROG_SOURCE_ROOT)")
	cmd.Flags().StringVar(&f.Extension, "extension", "",
		"Extension of convention-derived unit paths (env: MODPROG_EXTENSION)")
	cmd.Flags().StringVar(&f.RelayMode, "relay-mode", "",
		"Relay body without a wrapper: direct, wrapped (env: MODPROG_RELAY_MODE)")
	cmd.Flags().StringVar(&f.Framework, "framework", "",
		"Import path of the runtime package (env: MODPROG_FRAMEWORK)")
}

// run is a fully resolved invocation.
type run struct {
	Primary  string
	Options  pipeline.Options
	Settings config.Settings
}

// ResolvePrimaryPath returns the absolute primary file from args.
func ResolvePrimaryPath(args []string) (string, error) {
	primary := DefaultPrimary
	if len(args) > 0 {
		primary = args[0]
	}
	return filepath.Abs(primary)
}

// resolveRun loads the project config and resolves every setting.
func resolveRun(args []string, g *config.GlobalConfig, f *ProgramFlags, outputFlag string) (*run, error) {
	primary, err := ResolvePrimaryPath(args)
	if err != nil {
		return nil, &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: fmt.Errorf("resolving primary path: %w", err)}
	}

	cfgPath, err := config.ResolveConfigPath(g.ConfigFlag, configRoot(primary, f.ProjectRoot))
	if err != nil {
		return nil, &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: fmt.Errorf("resolving config path: %w", err)}
	}

	fileCfg, err := config.NewLoader().Load(cfgPath.ConfigPath)
	if err != nil {
		return nil, printed("loading config failed", err)
	}
	validator, err := config.NewValidator()
	if err != nil {
		return nil, &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: err}
	}
	if err := validator.Validate(fileCfg); err != nil {
		return nil, printed(fmt.Sprintf("invalid config %s", cfgPath.ConfigPath), err)
	}

	s := config.Resolve(config.FlagValues{
		ProjectRoot: f.ProjectRoot,
		SourceRoot:  f.SourceRoot,
		Extension:   f.Extension,
		RelayMode:   f.RelayMode,
		Framework:   f.Framework,
		Output:      outputFlag,
		Timestamps:  g.Timestamps,
	}, fileCfg)

	output.SetupLogging(output.LogConfig{Verbose: g.Verbose, Timestamps: output.BoolPtr(s.Timestamps)})
	output.Debug("config path resolved", "path", cfgPath.ConfigPath, "source", cfgPath.Source)
	if g.Verbose {
		config.LogResolvedValues(s.Values)
	}

	mode, err := relay.ParseMode(s.RelayMode)
	if err != nil {
		return nil, printed("invalid relay mode", err)
	}

	root := s.ProjectRoot
	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return nil, &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: err}
		}
	}

	return &run{
		Primary:  primary,
		Settings: s,
		Options: pipeline.Options{
			Primary: primary,
			Modules: f.Modules,
			Build: resolve.BuildContext{
				ProjectRoot: root,
				SourceRoot:  s.SourceRoot,
				Extension:   s.Extension,
			},
			Framework: s.Framework,
			Mode:      mode,
		},
	}, nil
}

// configRoot picks the directory searched for modprog.yaml: the explicit
// project root, else the enclosing go.mod directory, else the primary's
// directory.
func configRoot(primary, flagRoot string) string {
	if flagRoot != "" {
		return flagRoot
	}
	if env := os.Getenv(config.EnvProjectRoot); env != "" {
		return env
	}
	dir := filepath.Dir(primary)
	if mod, err := resolve.FindGoModule(dir); err == nil {
		return mod.Dir
	}
	return dir
}

// printed logs err and wraps it in an ExitError carrying its exit code.
func printed(msg string, err error) error {
	code := oerrors.ExitCodeFromError(err)
	output.Error(msg, "error", err, "exit", oerrors.ExitCodeName(code))
	return &oerrors.ExitError{Code: code, Err: err, Printed: true}
}
