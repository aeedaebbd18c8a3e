package pipeline

import (
	"context"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/relay"
	"github.com/opmodel/modprog/internal/resolve"
)

// Pipeline turns a primary file and its module list into the generated
// primary module.
type Pipeline interface {
	// Plan resolves, loads and relays every module without rendering.
	Plan(ctx context.Context, opts Options) (*Plan, error)

	// Generate runs every phase and returns the generated file.
	Generate(ctx context.Context, opts Options) (*Result, error)
}

// Options configure one run.
type Options struct {
	// Primary is the primary file.
	Primary string

	// Modules replaces the primary's //modprog:program directive when set.
	// Both the bare list and the "modules = [...]" form are accepted.
	Modules string

	// Build locates secondary units. An empty ProjectRoot means the
	// directory of the enclosing go.mod.
	Build resolve.BuildContext

	// Framework is the runtime package import path.
	Framework string

	// Mode selects the body of relays without a wrapper.
	Mode relay.Mode
}

// Validate checks required options.
func (o Options) Validate() error {
	if o.Primary == "" {
		return oerrors.NewValidationError("no primary file given", "", "primary",
			"Pass the primary file, e.g. modprog generate program.go")
	}
	if _, err := relay.ParseMode(string(o.Mode)); err != nil {
		return err
	}
	return nil
}

// Plan describes what a run generates.
type Plan struct {
	Primary    string          `json:"primary"`
	Package    string          `json:"package"`
	ImportPath string          `json:"importPath"`
	Mode       relay.Mode      `json:"mode"`
	Modules    []PlannedModule `json:"modules"`
}

// PlannedModule is one resolved module.
type PlannedModule struct {
	Spec       string         `json:"spec"`
	File       string         `json:"file"`
	ImportPath string         `json:"importPath"`
	Prefix     string         `json:"prefix"`
	Wrapper    string         `json:"wrapper,omitempty"`
	Relays     []PlannedRelay `json:"relays"`
}

// PlannedRelay is one relay to generate.
type PlannedRelay struct {
	Name          string `json:"name"`
	Target        string `json:"target"`
	Discriminator string `json:"discriminator"`
}

// Result is a completed run.
type Result struct {
	// Plan is what was generated.
	Plan *Plan

	// Source is the generated file.
	Source []byte

	// Instructions lists every registered instruction of the merged
	// program, in registration order.
	Instructions []string
}

// RelayCount returns the number of relays in the plan.
func (p *Plan) RelayCount() int {
	n := 0
	for _, m := range p.Modules {
		n += len(m.Relays)
	}
	return n
}
