// Package errors provides sentinel errors, structured error details and exit
// codes for the modprog CLI.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// DetailError is an error tied to a place in the user's sources. It renders
// compiler style so go:generate output stays greppable:
//
//	src/foo/mod.go:12:1: validation failed: instruction do is not exported
//		hint: Rename it with a leading capital so the primary package can call it
type DetailError struct {
	// Type is the error category.
	Type string

	// Message describes what went wrong.
	Message string

	// Location is a file, or file:line:col.
	Location string

	// Field names the module spec field involved, if any.
	Field string

	Context map[string]string

	// Hint suggests a fix.
	Hint string

	Cause error
}

func (e *DetailError) Error() string {
	var b strings.Builder

	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	b.WriteString(e.Type)
	b.WriteString(": ")
	b.WriteString(e.Message)

	var extra []string
	if e.Field != "" {
		extra = append(extra, "field "+e.Field)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		extra = append(extra, k+"="+e.Context[k])
	}
	if len(extra) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(extra, ", "))
	}

	if e.Hint != "" {
		b.WriteString("\n\thint: ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *DetailError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error with details.
func NewValidationError(message, location, field, hint string) error {
	return &DetailError{
		Type:     "validation failed",
		Message:  message,
		Location: location,
		Field:    field,
		Hint:     hint,
		Cause:    ErrValidation,
	}
}

// NewNotFoundError creates a not found error with details.
func NewNotFoundError(message, location, hint string) error {
	return &DetailError{
		Type:     "not found",
		Message:  message,
		Location: location,
		Hint:     hint,
		Cause:    ErrNotFound,
	}
}

// NewPermissionError creates a permission denied error with details.
func NewPermissionError(message string, context map[string]string, hint string) error {
	return &DetailError{
		Type:    "permission denied",
		Message: message,
		Context: context,
		Hint:    hint,
		Cause:   ErrPermission,
	}
}

// Wrap wraps an error with a sentinel error type.
func Wrap(sentinel error, message string) error {
	return fmt.Errorf("%s: %w", message, sentinel)
}
