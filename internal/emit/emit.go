// Package emit prints a merged primary module as the generated Go file.
package emit

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/build/constraint"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/program"
)

// BuildTag excludes primary files from ordinary builds.
const BuildTag = "modprog"

// RegistryName is the variable the generated file declares.
const RegistryName = "Instructions"

const directiveProgram = "//modprog:program"

var printConfig = printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}

// Rendered is a merged module printed without its registry.
type Rendered struct {
	// Source is the primary file name the output derives from.
	Source string

	// Body is the formatted source.
	Body []byte

	// Fset and File hold Body parsed.
	Fset *token.FileSet
	File *ast.File
}

// Render prints m: the primary file with the modprog build constraint and
// program directive removed and the merged imports added, followed by the
// appended declarations.
func Render(m *merge.Module) (*Rendered, error) {
	if m == nil || m.File == nil {
		return nil, merge.ErrNoBody
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, m.Path, m.Source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.Path, err)
	}
	if src, dropped := dropDirectiveLines(fset, file, m.Source); dropped {
		fset = token.NewFileSet()
		file, err = parser.ParseFile(fset, m.Path, src, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", m.Path, err)
		}
	}

	if err := stripDirectives(file); err != nil {
		return nil, err
	}
	for _, imp := range m.Imports {
		astutil.AddNamedImport(fset, file, imp.Name, imp.Path)
	}

	var buf bytes.Buffer
	if err := printConfig.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("printing %s: %w", m.Path, err)
	}

	for _, d := range m.Decls {
		buf.WriteString("\n")
		for _, line := range d.Doc {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		declFset := d.Fset
		if declFset == nil {
			declFset = token.NewFileSet()
		}
		if err := printConfig.Fprint(&buf, declFset, d.Func); err != nil {
			return nil, fmt.Errorf("printing %s: %w", d.Name, err)
		}
		buf.WriteString("\n")
	}

	body, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting merged module: %w", err)
	}

	rfset := token.NewFileSet()
	rfile, err := parser.ParseFile(rfset, m.Path, body, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parsing merged module: %w", err)
	}

	return &Rendered{Source: filepath.Base(m.Path), Body: body, Fset: rfset, File: rfile}, nil
}

// Finish appends the instruction registry to the rendered body and returns
// the complete generated file. fw is the file's name for the runtime
// package. Generic instructions cannot be referenced without instantiation
// and are left out of the registry.
func (r *Rendered) Finish(desc *program.Descriptor, fw string) ([]byte, error) {
	if declares(r.File, RegistryName) {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("primary module already declares %s", RegistryName), r.Source, "",
			"Rename the declaration; the generated file defines the instruction registry")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by modprog from %s. DO NOT EDIT.\n\n", r.Source)
	buf.Write(r.Body)

	fmt.Fprintf(&buf, "\n// %s lists the program's entry points in registration order.\n", RegistryName)
	var entries []string
	for _, ins := range desc.Instructions {
		if ins.Generic() {
			continue
		}
		d, err := ins.Discriminator()
		if err != nil {
			return nil, err
		}
		entries = append(entries, fmt.Sprintf("\t{Name: %q, Discriminator: []byte{%s}, Handler: %s},\n", ins.Name, byteList(d), ins.Name))
	}
	if len(entries) == 0 {
		fmt.Fprintf(&buf, "var %s = %s.Registry{}\n", RegistryName, fw)
	} else {
		fmt.Fprintf(&buf, "var %s = %s.Registry{\n%s}\n", RegistryName, fw, strings.Join(entries, ""))
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting generated file: %w", err)
	}
	return out, nil
}

// dropDirectiveLines deletes every line that holds only a program directive.
// Removing the lines, not just the comments, keeps a package doc written
// above the directive attached to the package clause.
func dropDirectiveLines(fset *token.FileSet, file *ast.File, src []byte) ([]byte, bool) {
	tf := fset.File(file.Pos())
	if tf == nil {
		return src, false
	}

	var out []byte
	last, dropped := 0, false
	for _, group := range file.Comments {
		for _, c := range group.List {
			if !isProgramDirective(c.Text) {
				continue
			}
			start := tf.Offset(tf.LineStart(tf.Line(c.Pos())))
			if len(bytes.TrimSpace(src[start:tf.Offset(c.Pos())])) > 0 {
				continue
			}
			end := tf.Offset(c.End())
			if end < len(src) && src[end] == '\n' {
				end++
			}
			out = append(out, src[last:start]...)
			last, dropped = end, true
		}
	}
	if !dropped {
		return src, false
	}
	return append(out, src[last:]...), true
}

func isProgramDirective(text string) bool {
	rest, ok := strings.CutPrefix(text, directiveProgram)
	return ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t')
}

// stripDirectives removes any remaining program directive and drops the
// modprog tag from the file's build constraint.
func stripDirectives(file *ast.File) error {
	var kept []*ast.CommentGroup
	for _, group := range file.Comments {
		var list []*ast.Comment
		for _, c := range group.List {
			text, keep, err := rewriteComment(c.Text, group.Pos() < file.Package)
			if err != nil {
				return err
			}
			if keep {
				c.Text = text
				list = append(list, c)
			}
		}
		group.List = list
		if len(list) > 0 {
			kept = append(kept, group)
		} else if file.Doc == group {
			file.Doc = nil
		}
	}
	file.Comments = kept
	return nil
}

func rewriteComment(text string, header bool) (string, bool, error) {
	if isProgramDirective(text) {
		return "", false, nil
	}
	if !header {
		return text, true, nil
	}

	switch {
	case constraint.IsGoBuild(text):
		expr, err := constraint.Parse(text)
		if err != nil {
			return "", false, oerrors.NewValidationError(err.Error(), "", "", "")
		}
		expr, err = withoutTag(expr)
		if err != nil {
			return "", false, err
		}
		if expr == nil {
			return "", false, nil
		}
		return "//go:build " + expr.String(), true, nil
	case constraint.IsPlusBuild(text):
		if strings.Contains(text, BuildTag) {
			return "", false, nil
		}
	}
	return text, true, nil
}

// withoutTag removes the modprog tag from a conjunction. A nil result means
// nothing is left.
func withoutTag(e constraint.Expr) (constraint.Expr, error) {
	switch x := e.(type) {
	case *constraint.TagExpr:
		if x.Tag == BuildTag {
			return nil, nil
		}
		return x, nil
	case *constraint.AndExpr:
		l, err := withoutTag(x.X)
		if err != nil {
			return nil, err
		}
		r, err := withoutTag(x.Y)
		if err != nil {
			return nil, err
		}
		switch {
		case l == nil:
			return r, nil
		case r == nil:
			return l, nil
		}
		return &constraint.AndExpr{X: l, Y: r}, nil
	}

	if mentions(e, BuildTag) {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("build constraint %q uses %s outside a conjunction", e.String(), BuildTag), "", "",
			"Write the constraint as //go:build modprog or //go:build modprog && <other tags>")
	}
	return e, nil
}

func mentions(e constraint.Expr, tag string) bool {
	switch x := e.(type) {
	case *constraint.TagExpr:
		return x.Tag == tag
	case *constraint.NotExpr:
		return mentions(x.X, tag)
	case *constraint.AndExpr:
		return mentions(x.X, tag) || mentions(x.Y, tag)
	case *constraint.OrExpr:
		return mentions(x.X, tag) || mentions(x.Y, tag)
	}
	return false
}

func byteList(d []byte) string {
	parts := make([]string, len(d))
	for i, b := range d {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return strings.Join(parts, ", ")
}

func declares(file *ast.File, name string) bool {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil && d.Name.Name == name {
				return true
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch sp := spec.(type) {
				case *ast.TypeSpec:
					if sp.Name.Name == name {
						return true
					}
				case *ast.ValueSpec:
					for _, n := range sp.Names {
						if n.Name == name {
							return true
						}
					}
				}
			}
		}
	}
	return false
}
