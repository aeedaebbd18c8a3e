package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

//go:embed schema.cue
var schemaFS embed.FS

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s\n", err.Error()))
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrValidation.
func (e ValidationErrors) Unwrap() error {
	return oerrors.ErrValidation
}

// Validator validates configuration against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	schemaData, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaData, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return nil, fmt.Errorf("schema has no #Config definition")
	}

	return &Validator{
		ctx:    ctx,
		schema: def,
	}, nil
}

// Validate validates the given configuration.
func (v *Validator) Validate(cfg *Config) error {
	val := v.ctx.Encode(cfg)
	if val.Err() != nil {
		return fmt.Errorf("encoding config: %w", val.Err())
	}
	return v.check(val)
}

// ValidateFile validates a YAML config file as written. Unknown keys are
// rejected.
func (v *Validator) ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return oerrors.NewNotFoundError("config file not found", path,
				"Run 'modprog config init' to create one")
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	f, err := cueyaml.Extract(path, data)
	if err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}

	val := v.ctx.BuildFile(f)
	if val.Err() != nil {
		return toValidationErrors(val.Err())
	}
	return v.check(val)
}

// check reports unknown keys and schema violations together. CUE stops
// reporting closedness once a sibling field fails, so unknown keys are
// collected by walking the value against the schema first.
func (v *Validator) check(val cue.Value) error {
	errs := unknownFields(v.schema, val, nil)

	unified := v.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		seen := make(map[ValidationError]bool, len(errs))
		for _, e := range errs {
			seen[e] = true
		}
		for _, e := range toValidationErrors(err) {
			if !seen[e] {
				seen[e] = true
				errs = append(errs, e)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// unknownFields lists the fields of val that schema does not declare,
// descending into nested structs.
func unknownFields(schema, val cue.Value, prefix []string) ValidationErrors {
	allowed := make(map[string]cue.Value)
	if it, err := schema.Fields(cue.Optional(true)); err == nil {
		for it.Next() {
			if name, ok := label(it.Selector()); ok {
				allowed[name] = it.Value()
			}
		}
	}

	fields, err := val.Fields()
	if err != nil {
		return nil
	}

	var errs ValidationErrors
	for fields.Next() {
		name, ok := label(fields.Selector())
		if !ok {
			continue
		}
		path := append(append([]string(nil), prefix...), name)
		sub, known := allowed[name]
		if !known {
			errs = append(errs, ValidationError{Field: strings.Join(path, "."), Message: "field not allowed"})
			continue
		}
		if fields.Value().IncompleteKind() == cue.StructKind && sub.IncompleteKind()&cue.StructKind != 0 {
			errs = append(errs, unknownFields(sub, fields.Value(), path)...)
		}
	}
	return errs
}

// label returns the plain name of a regular or optional field.
func label(sel cue.Selector) (string, bool) {
	if sel.LabelType() != cue.StringLabel {
		return "", false
	}
	return sel.Unquoted(), true
}

func toValidationErrors(err error) ValidationErrors {
	var errs ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{Message: err.Error()})
	}
	return errs
}
