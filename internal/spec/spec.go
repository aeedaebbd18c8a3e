// Package spec parses the module list of a modular program invocation:
//
//	modules = [ bar::instructions, { module: foo, file_path: "src/foo/mod.go", prefix: "oof" } ]
//
// Each entry is either a bare symbolic path or an object with the fields
// module (required), file_path, prefix and wrapper.
package spec

import (
	"strconv"
	"strings"
)

// Field names accepted inside an object entry.
const (
	FieldModule   = "module"
	FieldFilePath = "file_path"
	FieldPrefix   = "prefix"
	FieldWrapper  = "wrapper"
)

// ModuleSpec is one entry of the module list.
type ModuleSpec struct {
	// Module locates the secondary unit and seeds the default prefix.
	Module Path

	// Prefix overrides the relay name prefix. nil derives it from Module;
	// a pointer to "" disables prefixing.
	Prefix *string

	// FilePath overrides the convention-derived source location.
	FilePath *string

	// Wrapper names the function every relay of this module forwards through.
	Wrapper *Path
}

// EffectivePrefix returns the prefix relays of this module are named with.
func (s ModuleSpec) EffectivePrefix() string {
	if s.Prefix != nil {
		return *s.Prefix
	}
	return s.Module.First()
}

// RelayName applies the naming policy to an instruction name.
func (s ModuleSpec) RelayName(name string) string {
	prefix := s.EffectivePrefix()
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// String renders the entry in object form with only the present fields.
func (s ModuleSpec) String() string {
	var b strings.Builder
	b.WriteString("{ module: ")
	b.WriteString(s.Module.String())
	if s.FilePath != nil {
		b.WriteString(", file_path: ")
		b.WriteString(strconv.Quote(*s.FilePath))
	}
	if s.Prefix != nil {
		b.WriteString(", prefix: ")
		b.WriteString(strconv.Quote(*s.Prefix))
	}
	if s.Wrapper != nil {
		b.WriteString(", wrapper: ")
		b.WriteString(s.Wrapper.String())
	}
	b.WriteString(" }")
	return b.String()
}

// StringPtr returns a pointer to s, for building specs in code.
func StringPtr(s string) *string {
	return &s
}
