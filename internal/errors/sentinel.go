package errors

import "errors"

// Sentinel errors for known conditions.
var (
	// ErrValidation indicates an invalid invocation, source unit or merged program.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a source unit, package or config file was not found.
	ErrNotFound = errors.New("not found")

	// ErrPermission indicates a file could not be read or written.
	ErrPermission = errors.New("permission denied")

	// ErrStale indicates the generated file differs from what would be emitted.
	ErrStale = errors.New("generated file is stale")
)
