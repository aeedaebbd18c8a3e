// Package source loads the Go files a modular program is assembled from.
package source

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/opmodel/modprog/internal/program"
)

// TextParser turns source text into a syntax tree.
type TextParser interface {
	ParseFile(fset *token.FileSet, path string, src []byte) (*ast.File, error)
}

// GoParser is the go/parser implementation of TextParser. Comments are kept
// so doc comments and directives survive.
type GoParser struct{}

// ParseFile implements TextParser.
func (GoParser) ParseFile(fset *token.FileSet, path string, src []byte) (*ast.File, error) {
	return parser.ParseFile(fset, path, src, parser.ParseComments|parser.SkipObjectResolution)
}

// Envelope is the synthetic public container a secondary unit's
// declarations are wrapped in before domain parsing.
type Envelope struct {
	Name    string
	Package string
	Public  bool
	Imports []*ast.ImportSpec
	Decls   []ast.Decl
}

// ProgramParser extracts the domain view of an envelope.
type ProgramParser interface {
	Parse(env *Envelope) (*program.Descriptor, error)
}

// DomainParser adapts a program.Parser to ProgramParser.
type DomainParser struct {
	*program.Parser
}

// Parse implements ProgramParser.
func (p DomainParser) Parse(env *Envelope) (*program.Descriptor, error) {
	return p.ParseDecls(env.Package, env.Imports, env.Decls)
}
