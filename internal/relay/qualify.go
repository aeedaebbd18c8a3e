package relay

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
)

// qualifier rewrites type expressions written inside a secondary package so
// they mean the same thing inside the primary package.
type qualifier struct {
	// local is the primary's name for the secondary package; empty when both
	// are the same package.
	local string

	// imports is the secondary file's import table.
	imports map[string]string

	// declared holds the secondary file's top-level names.
	declared map[string]bool

	// typeParams holds the function's own type parameter names.
	typeParams map[string]bool

	set *ImportSet
}

func (q *qualifier) ident(name string) ast.Expr {
	if q.local == "" || q.typeParams[name] || name == "_" {
		return ast.NewIdent(name)
	}
	if !q.declared[name] && types.Universe.Lookup(name) != nil {
		return ast.NewIdent(name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(q.local), Sel: ast.NewIdent(name)}
}

// expr returns a position-free copy of e with every package reference
// rewritten.
func (q *qualifier) expr(e ast.Expr) (ast.Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil
	case *ast.Ident:
		return q.ident(x.Name), nil
	case *ast.BasicLit:
		return &ast.BasicLit{Kind: x.Kind, Value: x.Value}, nil
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported selector %T", x.X)
		}
		path, ok := q.imports[pkg.Name]
		if !ok {
			return nil, fmt.Errorf("unknown package %s", pkg.Name)
		}
		return &ast.SelectorExpr{X: ast.NewIdent(q.set.Alias(path, "")), Sel: ast.NewIdent(x.Sel.Name)}, nil
	case *ast.StarExpr:
		inner, err := q.expr(x.X)
		return &ast.StarExpr{X: inner}, err
	case *ast.ParenExpr:
		inner, err := q.expr(x.X)
		return &ast.ParenExpr{X: inner}, err
	case *ast.Ellipsis:
		elt, err := q.expr(x.Elt)
		return &ast.Ellipsis{Elt: elt}, err
	case *ast.UnaryExpr:
		inner, err := q.expr(x.X)
		return &ast.UnaryExpr{Op: x.Op, X: inner}, err
	case *ast.BinaryExpr:
		l, err := q.expr(x.X)
		if err != nil {
			return nil, err
		}
		r, err := q.expr(x.Y)
		return &ast.BinaryExpr{X: l, Op: x.Op, Y: r}, err
	case *ast.ArrayType:
		n, err := q.expr(x.Len)
		if err != nil {
			return nil, err
		}
		elt, err := q.expr(x.Elt)
		return &ast.ArrayType{Len: n, Elt: elt}, err
	case *ast.MapType:
		k, err := q.expr(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := q.expr(x.Value)
		return &ast.MapType{Key: k, Value: v}, err
	case *ast.ChanType:
		v, err := q.expr(x.Value)
		return &ast.ChanType{Dir: x.Dir, Value: v}, err
	case *ast.IndexExpr:
		base, err := q.expr(x.X)
		if err != nil {
			return nil, err
		}
		idx, err := q.expr(x.Index)
		return &ast.IndexExpr{X: base, Index: idx}, err
	case *ast.IndexListExpr:
		base, err := q.expr(x.X)
		if err != nil {
			return nil, err
		}
		out := &ast.IndexListExpr{X: base}
		for _, idx := range x.Indices {
			c, err := q.expr(idx)
			if err != nil {
				return nil, err
			}
			out.Indices = append(out.Indices, c)
		}
		return out, nil
	case *ast.FuncType:
		return q.funcType(x)
	case *ast.StructType:
		fields, err := q.fields(x.Fields)
		return &ast.StructType{Fields: braced(fields)}, err
	case *ast.InterfaceType:
		methods, err := q.fields(x.Methods)
		return &ast.InterfaceType{Methods: braced(methods)}, err
	default:
		return nil, fmt.Errorf("unsupported type expression %T", e)
	}
}

func (q *qualifier) funcType(ft *ast.FuncType) (*ast.FuncType, error) {
	tparams, err := q.fields(ft.TypeParams)
	if err != nil {
		return nil, err
	}
	params, err := q.fields(ft.Params)
	if err != nil {
		return nil, err
	}
	results, err := q.fields(ft.Results)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &ast.FieldList{}
	}
	return &ast.FuncType{TypeParams: tparams, Params: params, Results: results}, nil
}

// braced marks an empty or single-entry struct or interface body as written
// on one line. The printer only emits struct{} or struct{ A int } when both
// braces have valid positions on the same line; a copy without positions
// would print as a multi-line block.
func braced(fl *ast.FieldList) *ast.FieldList {
	if fl == nil {
		fl = &ast.FieldList{}
	}
	if len(fl.List) <= 1 {
		fl.Opening, fl.Closing = token.Pos(1), token.Pos(1)
	}
	return fl
}

// fields copies a field list. Names and tags are kept as they are.
func (q *qualifier) fields(fl *ast.FieldList) (*ast.FieldList, error) {
	if fl == nil {
		return nil, nil
	}
	out := &ast.FieldList{}
	for _, f := range fl.List {
		typ, err := q.expr(f.Type)
		if err != nil {
			return nil, err
		}
		field := &ast.Field{Type: typ}
		for _, n := range f.Names {
			field.Names = append(field.Names, ast.NewIdent(n.Name))
		}
		if f.Tag != nil {
			field.Tag = &ast.BasicLit{Kind: f.Tag.Kind, Value: f.Tag.Value}
		}
		out.List = append(out.List, field)
	}
	return out, nil
}
