// Package program recognizes the entry points of a modular program in Go
// source: instructions, whose first parameter is the framework's
// *Context[A], and the optional fallback handler.
package program

import (
	"go/ast"
	"strings"
)

// DefaultFramework is the import path of the runtime package generated
// programs are built against.
const DefaultFramework = "github.com/opmodel/modprog/pkg/program"

// Param is one parameter of an instruction, one entry per declared name.
type Param struct {
	// Name is the declared name; empty when the parameter is unnamed.
	Name string

	// Type is the declared type. For a variadic parameter the element type.
	Type ast.Expr

	// Blank is set when the parameter carries no usable binding: it is
	// unnamed or declared as _.
	Blank bool

	// Variadic marks a trailing ...T parameter.
	Variadic bool
}

// Instruction is a top-level function callable as a program entry point.
type Instruction struct {
	// Name is the function name.
	Name string

	// Decl is the declaration as parsed.
	Decl *ast.FuncDecl

	// Accounts is the type argument of the context parameter.
	Accounts ast.Expr

	// Params lists all parameters; Params[0] is the context.
	Params []Param

	// TypeParams is the type parameter list of a generic instruction.
	TypeParams *ast.FieldList

	// Results is the result list, nil when the instruction returns nothing.
	Results *ast.FieldList

	// Doc holds the raw doc comment lines, markers included.
	Doc []string

	// DiscriminatorDirective is the argument of a //modprog:discriminator
	// line, empty when the default discriminator applies.
	DiscriminatorDirective string
}

// Exported reports whether the instruction can be referenced from another
// package.
func (i *Instruction) Exported() bool {
	return ast.IsExported(i.Name)
}

// Generic reports whether the instruction declares type parameters.
func (i *Instruction) Generic() bool {
	return i.TypeParams != nil && i.TypeParams.NumFields() > 0
}

// Descriptor is the domain view of one parsed unit.
type Descriptor struct {
	// Package is the Go package name.
	Package string

	// Instructions are listed in declaration order.
	Instructions []*Instruction

	// Fallbacks lists every fallback handler found.
	Fallbacks []*ast.FuncDecl
}

// HasFallback reports whether the unit declares a fallback handler.
func (d *Descriptor) HasFallback() bool {
	return len(d.Fallbacks) > 0
}

// Names returns instruction names in declaration order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.Instructions))
	for i, ins := range d.Instructions {
		names[i] = ins.Name
	}
	return names
}

// docLines returns the raw lines of a comment group.
func docLines(g *ast.CommentGroup) []string {
	if g == nil {
		return nil
	}
	var lines []string
	for _, c := range g.List {
		lines = append(lines, strings.Split(c.Text, "\n")...)
	}
	return lines
}
