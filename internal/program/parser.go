package program

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// Directive markers recognized in doc comments.
const (
	DirectiveFallback      = "//modprog:fallback"
	DirectiveDiscriminator = "//modprog:discriminator"
)

// Names of the framework types the parser keys on.
const (
	contextType         = "Context"
	fallbackContextType = "FallbackContext"
)

// Parser extracts a Descriptor from Go declarations.
type Parser struct {
	// Framework is the import path of the runtime package.
	Framework string

	// Fset, when set, is used to report source positions.
	Fset *token.FileSet
}

// NewParser returns a parser keyed on the given framework import path.
func NewParser(framework string, fset *token.FileSet) *Parser {
	if framework == "" {
		framework = DefaultFramework
	}
	return &Parser{Framework: framework, Fset: fset}
}

// ParseFile parses the top-level declarations of a file.
func (p *Parser) ParseFile(file *ast.File) (*Descriptor, error) {
	return p.ParseDecls(file.Name.Name, file.Imports, file.Decls)
}

// ParseDecls parses declarations of package pkg whose file imports are given.
// Methods and functions that take no framework context are helpers and are
// skipped.
func (p *Parser) ParseDecls(pkg string, imports []*ast.ImportSpec, decls []ast.Decl) (*Descriptor, error) {
	fw := make(map[string]bool)
	for name, path := range ImportTable(imports) {
		if path == p.Framework {
			fw[name] = true
		}
	}

	desc := &Descriptor{Package: pkg}
	for _, decl := range decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}

		doc := docLines(fn.Doc)
		first := firstParamType(fn)

		isFallback, err := p.fallback(fn, doc, first, fw)
		if err != nil {
			return nil, err
		}
		if isFallback {
			desc.Fallbacks = append(desc.Fallbacks, fn)
			continue
		}

		accounts, isContext, err := p.contextAccounts(fn, first, fw)
		if err != nil {
			return nil, err
		}
		if !isContext {
			continue
		}

		ins, err := p.instruction(fn, doc, accounts)
		if err != nil {
			return nil, err
		}
		desc.Instructions = append(desc.Instructions, ins)
	}
	return desc, nil
}

func (p *Parser) fallback(fn *ast.FuncDecl, doc []string, first ast.Expr, fw map[string]bool) (bool, error) {
	marked := hasDirective(doc, DirectiveFallback)
	if !marked && fn.Name.Name != "Fallback" {
		return false, nil
	}
	if isFrameworkType(first, fallbackContextType, fw) {
		return true, nil
	}
	if marked {
		return false, p.errorf(fn, "",
			"Declare the fallback as func(*program.FallbackContext) error",
			"fallback %s must take the framework FallbackContext as its first parameter", fn.Name.Name)
	}
	return false, nil
}

// contextAccounts returns the type argument A of a *fw.Context[A] first
// parameter. The context type takes exactly one type argument.
func (p *Parser) contextAccounts(fn *ast.FuncDecl, first ast.Expr, fw map[string]bool) (ast.Expr, bool, error) {
	star, ok := first.(*ast.StarExpr)
	if !ok {
		return nil, false, nil
	}
	switch x := star.X.(type) {
	case *ast.IndexExpr:
		if isFrameworkType(x.X, contextType, fw) {
			return x.Index, true, nil
		}
	case *ast.IndexListExpr:
		if isFrameworkType(x.X, contextType, fw) {
			return nil, false, p.errorf(fn, "", "",
				"instruction %s: context takes exactly one type argument, got %d", fn.Name.Name, len(x.Indices))
		}
	case *ast.SelectorExpr:
		if isFrameworkType(x, contextType, fw) {
			return nil, false, p.errorf(fn, "", "Instantiate the context with the accounts type, e.g. *program.Context[Accounts]",
				"instruction %s: context is missing its type argument", fn.Name.Name)
		}
	}
	return nil, false, nil
}

func (p *Parser) instruction(fn *ast.FuncDecl, doc []string, accounts ast.Expr) (*Instruction, error) {
	ins := &Instruction{
		Name:       fn.Name.Name,
		Decl:       fn,
		Accounts:   accounts,
		TypeParams: fn.Type.TypeParams,
		Results:    fn.Type.Results,
		Doc:        doc,
	}

	for _, field := range fn.Type.Params.List {
		typ := field.Type
		variadic := false
		if ell, ok := typ.(*ast.Ellipsis); ok {
			typ = ell.Elt
			variadic = true
		}
		if len(field.Names) == 0 {
			ins.Params = append(ins.Params, Param{Type: typ, Blank: true, Variadic: variadic})
			continue
		}
		for _, name := range field.Names {
			ins.Params = append(ins.Params, Param{
				Name:     name.Name,
				Type:     typ,
				Blank:    name.Name == "_",
				Variadic: variadic,
			})
		}
	}

	if res := fn.Type.Results; res != nil && len(res.List) > 0 {
		last, ok := res.List[len(res.List)-1].Type.(*ast.Ident)
		if !ok || last.Name != "error" {
			return nil, p.errorf(fn, "", "Return error as the last result, or nothing",
				"instruction %s must return error as its last result", fn.Name.Name)
		}
	}

	directives := directiveArgs(doc, DirectiveDiscriminator)
	switch len(directives) {
	case 0:
	case 1:
		ins.DiscriminatorDirective = directives[0]
	default:
		return nil, p.errorf(fn, "discriminator", "",
			"instruction %s has %d discriminator directives", fn.Name.Name, len(directives))
	}
	return ins, nil
}

func (p *Parser) errorf(node ast.Node, field, hint, format string, args ...any) error {
	location := ""
	if p.Fset != nil && node != nil {
		location = p.Fset.Position(node.Pos()).String()
	}
	return oerrors.NewValidationError(fmt.Sprintf(format, args...), location, field, hint)
}

func firstParamType(fn *ast.FuncDecl) ast.Expr {
	params := fn.Type.Params
	if params == nil || len(params.List) == 0 {
		return nil
	}
	return params.List[0].Type
}

// isFrameworkType matches fw.name and *fw.name.
func isFrameworkType(expr ast.Expr, name string, fw map[string]bool) bool {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return false
	}
	q, ok := sel.X.(*ast.Ident)
	return ok && fw[q.Name]
}

func hasDirective(doc []string, marker string) bool {
	for _, line := range doc {
		if strings.TrimSpace(line) == marker {
			return true
		}
	}
	return false
}

func directiveArgs(doc []string, marker string) []string {
	var args []string
	for _, line := range doc {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), marker)
		if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
			continue
		}
		args = append(args, strings.TrimSpace(rest))
	}
	return args
}
