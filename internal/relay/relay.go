// Package relay generates the primary-module functions that forward to
// instructions declared in secondary units.
//
// A relay keeps the instruction's call signature, rewritten so it is valid
// in the primary package, and forwards every parameter in order:
//
//	func bar_Instr(ctx *program.Context[bar.Init], n uint64) error {
//		return bar.Instr(ctx, n)
//	}
//
// When the module names a wrapper, the original is passed through it first:
//
//	return wrap.Doubled(foo.Instr)(ctx, n)
package relay

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/program"
	"github.com/opmodel/modprog/internal/source"
	"github.com/opmodel/modprog/internal/spec"
)

// Mode selects the relay body used for modules without a wrapper.
type Mode string

// Relay modes.
const (
	// ModeDirect calls the original instruction directly.
	ModeDirect Mode = "direct"

	// ModeWrapped routes every call through the default wrapper.
	ModeWrapped Mode = "wrapped"
)

// ParseMode parses a relay mode name; empty selects ModeDirect.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeWrapped:
		return ModeWrapped, nil
	}
	return "", oerrors.NewValidationError(
		fmt.Sprintf("unknown relay mode %q", s), "", "relayMode",
		"Use one of: direct, wrapped")
}

// Wrapper is a resolved wrapper function.
type Wrapper struct {
	// Func is the wrapper function name.
	Func string

	// ImportPath is the wrapper's package; empty for a function of the
	// primary package.
	ImportPath string

	// Package is the declared package name.
	Package string
}

// Target is one loaded module to generate relays for.
type Target struct {
	Spec    spec.ModuleSpec
	Unit    *source.Unit
	Wrapper *Wrapper
}

// Relay is one generated forwarding function.
type Relay struct {
	// Name is the relay function name.
	Name string

	// Target is the qualified original, as written in the relay body.
	Target string

	// Wrapper is the wrapper expression, empty for a direct call.
	Wrapper string

	// Spec is the module the instruction came from.
	Spec spec.ModuleSpec

	// Instruction is the relayed instruction.
	Instruction *program.Instruction

	// Doc holds the instruction's doc comment lines, copied verbatim.
	Doc []string

	// Source is the generated function text, without doc comment.
	Source string

	// Decl is Source parsed.
	Decl *ast.FuncDecl

	fset *token.FileSet
}

// MergeDecl returns the relay as a declaration for the merger.
func (r *Relay) MergeDecl() merge.Decl {
	return merge.Decl{Name: r.Name, Doc: r.Doc, Func: r.Decl, Fset: r.fset}
}

// Generator builds relays for a primary module.
type Generator struct {
	// Framework is the import path of the runtime package.
	Framework string

	// Mode selects the body of relays without a wrapper.
	Mode Mode

	// PrimaryImportPath is the import path of the primary package.
	PrimaryImportPath string

	// Imports allocates the primary's names for referenced packages.
	Imports *ImportSet

	declared   map[string]bool
	useDefault bool
}

// NewGenerator returns a generator for the given primary file.
func NewGenerator(primary *ast.File, primaryImportPath, framework string, mode Mode) *Generator {
	if framework == "" {
		framework = program.DefaultFramework
	}
	if mode == "" {
		mode = ModeDirect
	}
	g := &Generator{
		Framework:         framework,
		Mode:              mode,
		PrimaryImportPath: primaryImportPath,
		Imports:           NewImportSet(primary),
		declared:          make(map[string]bool),
	}
	if primary != nil {
		for _, n := range TopLevelNames(primary) {
			g.declared[n] = true
		}
	}
	return g
}

// FrameworkAlias returns the primary's name for the runtime package.
func (g *Generator) FrameworkAlias() string {
	name := ""
	if g.Framework == program.DefaultFramework {
		name = "program"
	}
	return g.Imports.Alias(g.Framework, name)
}

// Generate returns the relays of all targets: spec order, then declaration
// order within each unit.
func (g *Generator) Generate(targets []Target) ([]*Relay, error) {
	for _, t := range targets {
		for _, ins := range t.Unit.Descriptor.Instructions {
			g.Imports.Reserve(t.Spec.RelayName(ins.Name))
		}
	}
	g.Imports.Reserve(DefaultWrapperName)

	var relays []*Relay
	for _, t := range targets {
		for _, ins := range t.Unit.Descriptor.Instructions {
			r, err := g.relay(t, ins)
			if err != nil {
				return nil, err
			}
			relays = append(relays, r)
		}
	}
	return relays, nil
}

// Decls returns the declarations to merge: the default wrapper when a relay
// uses it and the primary does not declare one, then the relays.
func (g *Generator) Decls(relays []*Relay) ([]merge.Decl, error) {
	decls := make([]merge.Decl, 0, len(relays)+1)
	if g.useDefault && !g.declared[DefaultWrapperName] {
		w, err := DefaultWrapperDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, w)
	}
	for _, r := range relays {
		decls = append(decls, r.MergeDecl())
	}
	return decls, nil
}

func (g *Generator) relay(t Target, ins *program.Instruction) (*Relay, error) {
	name := t.Spec.RelayName(ins.Name)
	fail := func(err error) error {
		return oerrors.NewValidationError(
			fmt.Sprintf("relaying %s as %s: %v", ins.Name, name, err), t.Unit.Path, "",
			"Declare parameter and result types with named types of the unit's package or its imports")
	}

	q := &qualifier{
		imports:    t.Unit.Imports,
		declared:   make(map[string]bool),
		typeParams: make(map[string]bool),
		set:        g.Imports,
	}
	for _, n := range TopLevelNames(t.Unit.File) {
		q.declared[n] = true
	}

	// Body identifiers parameters must not shadow.
	reserved := make(map[string]bool)

	target := ins.Name
	if t.Unit.ImportPath != g.PrimaryImportPath {
		q.local = g.Imports.Alias(t.Unit.ImportPath, t.Unit.Package)
		target = q.local + "." + ins.Name
		reserved[q.local] = true
	} else {
		// The unit compiles next to the generated file.
		if q.declared[name] {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("relay %s redeclares %s of package %s", name, name, t.Unit.Package), t.Unit.Path, "prefix",
				"Give the module a non-empty prefix")
		}
		reserved[ins.Name] = true
	}

	wrapper, err := g.wrapperExpr(t)
	if err != nil {
		return nil, err
	}
	if wrapper != "" {
		reserved[strings.SplitN(wrapper, ".", 2)[0]] = true
	}

	var tparams []string
	if ins.TypeParams != nil {
		for _, f := range ins.TypeParams.List {
			for _, n := range f.Names {
				q.typeParams[n.Name] = true
				reserved[n.Name] = true
				tparams = append(tparams, n.Name)
			}
		}
	}

	var b strings.Builder
	b.WriteString("func ")
	b.WriteString(name)

	if len(tparams) > 0 {
		fl, err := q.fields(ins.TypeParams)
		if err != nil {
			return nil, fail(err)
		}
		b.WriteString("[")
		b.WriteString(fieldList(fl))
		b.WriteString("]")
	}

	names := paramNames(ins.Params, reserved)
	fw := g.FrameworkAlias()
	params := make([]string, len(ins.Params))
	for i, p := range ins.Params {
		var typ ast.Expr
		if i == 0 {
			accounts, err := q.expr(ins.Accounts)
			if err != nil {
				return nil, fail(err)
			}
			typ = &ast.StarExpr{X: &ast.IndexExpr{
				X:     &ast.SelectorExpr{X: ast.NewIdent(fw), Sel: ast.NewIdent("Context")},
				Index: accounts,
			}}
		} else {
			typ, err = q.expr(p.Type)
			if err != nil {
				return nil, fail(err)
			}
		}
		prefix := ""
		if p.Variadic {
			prefix = "..."
		}
		params[i] = names[i] + " " + prefix + exprString(typ)
	}
	b.WriteString("(")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(")")

	results, err := q.fields(ins.Results)
	if err != nil {
		return nil, fail(err)
	}
	if results != nil && len(results.List) > 0 {
		b.WriteString(" ")
		if len(results.List) == 1 && len(results.List[0].Names) == 0 {
			b.WriteString(exprString(results.List[0].Type))
		} else {
			b.WriteString("(" + fieldList(results) + ")")
		}
	}

	callee := target
	if len(tparams) > 0 {
		callee += "[" + strings.Join(tparams, ", ") + "]"
	}
	if wrapper != "" {
		callee = wrapper + "(" + callee + ")"
	}

	args := strings.Join(names, ", ")
	if n := len(ins.Params); n > 0 && ins.Params[n-1].Variadic {
		args += "..."
	}

	b.WriteString(" {\n\t")
	if results != nil && len(results.List) > 0 {
		b.WriteString("return ")
	}
	b.WriteString(callee + "(" + args + ")")
	b.WriteString("\n}\n")

	src := b.String()
	fset, decl, err := parseFunc(src)
	if err != nil {
		return nil, fmt.Errorf("generated relay %s does not parse: %w", name, err)
	}

	return &Relay{
		Name:        name,
		Target:      target,
		Wrapper:     wrapper,
		Spec:        t.Spec,
		Instruction: ins,
		Doc:         append([]string(nil), ins.Doc...),
		Source:      src,
		Decl:        decl,
		fset:        fset,
	}, nil
}

// wrapperExpr returns the wrapper to pass the original through, or empty for
// a direct call.
func (g *Generator) wrapperExpr(t Target) (string, error) {
	if t.Wrapper == nil {
		if g.Mode == ModeWrapped {
			g.useDefault = true
			return DefaultWrapperName, nil
		}
		return "", nil
	}
	if t.Wrapper.ImportPath == "" || t.Wrapper.ImportPath == g.PrimaryImportPath {
		return t.Wrapper.Func, nil
	}
	if !ast.IsExported(t.Wrapper.Func) {
		return "", oerrors.NewValidationError(
			fmt.Sprintf("wrapper %s.%s is not exported", t.Wrapper.Package, t.Wrapper.Func), "", "wrapper", "")
	}
	return g.Imports.Alias(t.Wrapper.ImportPath, t.Wrapper.Package) + "." + t.Wrapper.Func, nil
}

// paramNames gives every parameter a usable name: ctx for an unnamed
// context, argN for other blank parameters. Names that would shadow a body
// identifier get a trailing underscore.
func paramNames(params []program.Param, reserved map[string]bool) []string {
	taken := make(map[string]bool)
	for _, p := range params {
		if !p.Blank && !reserved[p.Name] {
			taken[p.Name] = true
		}
	}

	names := make([]string, len(params))
	for i, p := range params {
		if !p.Blank && !reserved[p.Name] {
			names[i] = p.Name
			continue
		}
		name := p.Name
		if p.Blank {
			name = fmt.Sprintf("arg%d", i)
			if i == 0 {
				name = "ctx"
			}
		}
		for taken[name] || reserved[name] {
			name += "_"
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func fieldList(fl *ast.FieldList) string {
	parts := make([]string, 0, len(fl.List))
	for _, f := range fl.List {
		typ := exprString(f.Type)
		if len(f.Names) == 0 {
			parts = append(parts, typ)
			continue
		}
		names := make([]string, len(f.Names))
		for i, n := range f.Names {
			names[i] = n.Name
		}
		parts = append(parts, strings.Join(names, ", ")+" "+typ)
	}
	return strings.Join(parts, ", ")
}

func exprString(e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), e); err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return buf.String()
}

func parseFunc(src string) (*token.FileSet, *ast.FuncDecl, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "relay.go", "package relay\n\n"+src, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range file.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			return fset, fn, nil
		}
	}
	return nil, nil, fmt.Errorf("no function declaration")
}
