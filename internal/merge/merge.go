// Package merge splices generated declarations into the primary module.
package merge

import (
	"go/ast"
	"go/token"
	"slices"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// ErrNoBody is returned when the primary module has no body to extend.
var ErrNoBody = oerrors.Wrap(oerrors.ErrValidation, "primary module has no body")

// Import is an import the merged module needs.
type Import struct {
	// Name is the explicit import name, empty when the package name is used.
	Name string

	// Path is the import path.
	Path string
}

// Decl is a generated top-level function appended to the module.
type Decl struct {
	// Name is the declared function name.
	Name string

	// Doc holds comment lines emitted above the declaration, verbatim.
	Doc []string

	// Func is the declaration. Its own Doc field is ignored.
	Func *ast.FuncDecl

	// Fset holds the positions of Func.
	Fset *token.FileSet
}

// Module is the primary module of a program.
type Module struct {
	// Name is the Go package name.
	Name string

	// Path is the primary file location.
	Path string

	// Source is the primary file content.
	Source []byte

	// Fset holds the positions of File.
	Fset *token.FileSet

	// File is the parsed body; nil when the module has no body.
	File *ast.File

	// Imports are added to the file when it is emitted.
	Imports []Import

	// Decls are appended after the body, in order.
	Decls []Decl
}

// Merge returns a copy of primary with imports and decls appended after
// those it already carries. The input module is never modified and no
// deduplication takes place.
func Merge(primary *Module, decls []Decl, imports []Import) (*Module, error) {
	if primary == nil || primary.File == nil {
		return nil, ErrNoBody
	}

	merged := *primary
	merged.Imports = append(slices.Clip(slices.Clone(primary.Imports)), imports...)
	merged.Decls = append(slices.Clip(slices.Clone(primary.Decls)), decls...)
	return &merged, nil
}

// DeclNames returns the names of the appended declarations in order.
func (m *Module) DeclNames() []string {
	names := make([]string, len(m.Decls))
	for i, d := range m.Decls {
		names[i] = d.Name
	}
	return names
}
