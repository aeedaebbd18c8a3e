package spec

import (
	"errors"
	"fmt"
	"text/scanner"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// ErrorKind classifies invocation errors.
type ErrorKind int

const (
	// KindSyntax covers malformed keywords, punctuation and literals.
	KindSyntax ErrorKind = iota
	// KindUnknownField is an object field name outside the grammar.
	KindUnknownField
	// KindDuplicateField is an object field given more than once.
	KindDuplicateField
	// KindMissingRequiredField is an object without a module field.
	KindMissingRequiredField
)

// Sentinels matched by errors.Is against *Error.
var (
	ErrSyntax               = errors.New("syntax error")
	ErrUnknownField         = errors.New("unknown field")
	ErrDuplicateField       = errors.New("duplicate field")
	ErrMissingRequiredField = errors.New("missing required field")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnknownField:
		return ErrUnknownField
	case KindDuplicateField:
		return ErrDuplicateField
	case KindMissingRequiredField:
		return ErrMissingRequiredField
	default:
		return ErrSyntax
	}
}

// String returns the kind name.
func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// Error is an invocation error reported at the invocation site.
type Error struct {
	Kind  ErrorKind
	Field string
	Pos   scanner.Position
	Msg   string
}

func newError(kind ErrorKind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("modules:%d:%d: %s: %s", e.Pos.Line, e.Pos.Column, e.Kind, e.Msg)
	}
	return fmt.Sprintf("modules: %s: %s", e.Kind, e.Msg)
}

// Is matches the kind sentinel and the CLI-wide validation sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel() || target == oerrors.ErrValidation
}
