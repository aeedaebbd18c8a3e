package gen

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/pipeline"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd(cfg *config.GlobalConfig) *cobra.Command {
	var (
		pf         ProgramFlags
		formatFlag string
		diffFlag   string
	)

	c := &cobra.Command{
		Use:   "plan [primary.go]",
		Short: "Show the relays a generate run would produce",
		Long: `Resolve and load every module of a modular program and list the
relays that generate would add, without rendering or writing anything.

Arguments:
  primary.go    Primary file (default: program.go)

Examples:
  # Table of relays
  modprog plan

  # Machine-readable plan
  modprog plan program.go -o json

  # Compare against a saved plan; exits 6 when relays changed
  modprog plan -o yaml > plan.yaml
  modprog plan --diff plan.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runPlan(c, args, cfg, &pf, formatFlag, diffFlag)
		},
	}

	pf.AddTo(c)
	c.Flags().StringVarP(&formatFlag, "output", "o", "table",
		"Output format: "+strings.Join(output.ValidFormats(), ", "))
	c.Flags().StringVar(&diffFlag, "diff", "",
		"Compare the plan with a saved YAML or JSON plan instead of printing it")

	return c
}

func runPlan(c *cobra.Command, args []string, cfg *config.GlobalConfig, pf *ProgramFlags, formatFlag, diffFile string) error {
	format, ok := output.ParseFormat(formatFlag)
	if !ok {
		return &oerrors.ExitError{
			Code: oerrors.ExitGeneralError,
			Err:  fmt.Errorf("invalid output format %q (valid: %s)", formatFlag, strings.Join(output.ValidFormats(), ", ")),
		}
	}

	r, err := resolveRun(args, cfg, pf, "")
	if err != nil {
		return err
	}

	plan, err := pipeline.NewPipeline().Plan(c.Context(), r.Options)
	if err != nil {
		return printed("plan failed", err)
	}

	if diffFile != "" {
		return diffPlan(c.OutOrStdout(), plan, diffFile)
	}

	if err := WritePlan(c.OutOrStdout(), plan, format); err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: err}
	}
	return nil
}

// WritePlan renders plan in the given format.
func WritePlan(w io.Writer, plan *pipeline.Plan, format output.Format) error {
	var data []byte
	var err error

	switch format {
	case output.FormatJSON:
		data, err = json.MarshalIndent(plan, "", "  ")
		data = append(data, '\n')
	case output.FormatYAML:
		data, err = yaml.Marshal(plan)
	default:
		tbl := output.NewTable("RELAY", "TARGET", "MODULE", "DISCRIMINATOR")
		for _, m := range plan.Modules {
			for _, rl := range m.Relays {
				tbl.Row(rl.Name, rl.Target, m.Spec, rl.Discriminator)
			}
		}
		tbl.Dim(2)
		data = []byte(tbl.String() + "\n")
	}
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	_, err = w.Write(data)
	return err
}

// diffPlan compares plan with the plan saved at path. Differences are
// reported as ErrStale.
func diffPlan(w io.Writer, plan *pipeline.Plan, path string) error {
	saved, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return printed("reading saved plan failed",
				oerrors.NewNotFoundError("saved plan not found", path, "Save one with: modprog plan -o yaml > plan.yaml"))
		}
		return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: fmt.Errorf("reading saved plan: %w", err)}
	}

	current, err := yaml.Marshal(plan)
	if err != nil {
		return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: fmt.Errorf("marshaling plan: %w", err)}
	}

	report, err := output.DiffYAML(path, saved, "current", current, output.IsTTY())
	if err != nil {
		return printed("comparing plans failed", oerrors.NewValidationError(err.Error(), path, "", ""))
	}
	if report == "" {
		fmt.Fprintln(w, output.FormatCheckmark("plan unchanged"))
		return nil
	}

	fmt.Fprintln(w, report)
	return &oerrors.ExitError{
		Code: oerrors.ExitStale,
		Err:  oerrors.Wrap(oerrors.ErrStale, "plan differs from "+path),
	}
}
