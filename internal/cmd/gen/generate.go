package gen

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/pipeline"
)

// NewGenerateCmd creates the generate command.
func NewGenerateCmd(cfg *config.GlobalConfig) *cobra.Command {
	var (
		pf         ProgramFlags
		outFlag    string
		checkFlag  bool
		stdoutFlag bool
	)

	c := &cobra.Command{
		Use:   "generate [primary.go]",
		Short: "Generate relays for a modular program",
		Long: `Generate the merged primary module of a modular program.

Every module listed in the primary's //modprog:program directive is
resolved to a source unit and loaded. One relay per exported instruction
is appended to the primary module, which is then validated and written
with its instruction registry to <primary>_gen.go.

Arguments:
  primary.go    Primary file (default: program.go)

Examples:
  # Generate program_gen.go next to program.go
  modprog generate

  # Override the module list
  modprog generate program.go -m '[bar::instructions, { module: foo, prefix: "oof" }]'

  # Fail when the generated file is out of date
  modprog generate --check`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runGenerate(c, args, cfg, &pf, outFlag, checkFlag, stdoutFlag)
		},
	}

	pf.AddTo(c)

	c.Flags().StringVar(&outFlag, "out", "",
		"Generated file name (env: MODPROG_OUTPUT, default: <primary>_gen.go)")
	c.Flags().BoolVar(&checkFlag, "check", false,
		"Do not write; fail when the generated file is missing or stale")
	c.Flags().BoolVar(&stdoutFlag, "stdout", false,
		"Write the generated file to stdout instead of disk")
	c.MarkFlagsMutuallyExclusive("check", "stdout")

	return c
}

func runGenerate(c *cobra.Command, args []string, cfg *config.GlobalConfig, pf *ProgramFlags, outFlag string, check, stdout bool) error {
	r, err := resolveRun(args, cfg, pf, outFlag)
	if err != nil {
		return err
	}

	output.Debug("generating program",
		"primary", r.Primary,
		"mode", r.Options.Mode,
		"project-root", r.Options.Build.ProjectRoot,
	)

	var res *pipeline.Result
	gen := func(ctx context.Context) error {
		var err error
		res, err = pipeline.NewPipeline().Generate(ctx, r.Options)
		return err
	}
	if stdout || cfg.Verbose {
		err = gen(c.Context())
	} else {
		err = output.RunWithSpinner(c.Context(), "Generating relays...", gen)
	}
	if err != nil {
		return printed("generate failed", err)
	}

	if stdout {
		_, err := c.OutOrStdout().Write(res.Source)
		return err
	}

	for _, m := range res.Plan.Modules {
		modLog := output.ModuleLogger(m.Spec)
		for _, rl := range m.Relays {
			modLog.Info(output.FormatRelayLine(rl.Name, rl.Target))
		}
	}

	path := pipeline.OutputPath(r.Primary, r.Settings.Output)
	status, err := pipeline.WriteOutput(path, res.Source, check)
	display := displayPath(path)
	out := c.OutOrStdout()
	if err != nil {
		if status == "" {
			status = output.StatusFailed
		}
		fmt.Fprintln(out, output.FormatFileLine(display, status))
		if errors.Is(err, oerrors.ErrStale) {
			return &oerrors.ExitError{Code: oerrors.ExitStale, Err: err}
		}
		return printed("writing generated file failed", err)
	}

	fmt.Fprintln(out, output.FormatFileLine(display, status))
	fmt.Fprintln(out, output.FormatCheckmark(fmt.Sprintf("%d relays, %d instructions", res.Plan.RelayCount(), len(res.Instructions))))
	return nil
}

// displayPath shortens path relative to the working directory when possible.
func displayPath(path string) string {
	wd, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || len(rel) >= len(path) {
		return path
	}
	return rel
}
