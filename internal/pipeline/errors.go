package pipeline

import (
	"fmt"
)

// Phases of a generation run, in execution order.
const (
	PhaseParse    = "parse"
	PhaseResolve  = "resolve"
	PhaseLoad     = "load"
	PhaseRelay    = "relay"
	PhaseMerge    = "merge"
	PhaseRender   = "render"
	PhaseValidate = "validate"
	PhaseEmit     = "emit"
)

// PhaseError names the phase, and the module when there is one, that a
// run failed in. The underlying error is kept for errors.Is.
type PhaseError struct {
	// Phase is one of the Phase constants.
	Phase string

	// Module is the module path being processed, empty for whole-program
	// phases.
	Module string

	// Err is the underlying error.
	Err error
}

func (e *PhaseError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Module, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase, module string, err error) error {
	return &PhaseError{Phase: phase, Module: module, Err: err}
}
