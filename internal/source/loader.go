package source

import (
	"fmt"
	"go/ast"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/output"
	"github.com/opmodel/modprog/internal/program"
	"github.com/opmodel/modprog/internal/resolve"
)

// DirectiveProgram marks the module list in a primary file.
const DirectiveProgram = "//modprog:program"

// ErrFallbackInSecondary is returned when a secondary unit declares a
// fallback handler; only the primary module may.
var ErrFallbackInSecondary = oerrors.Wrap(oerrors.ErrValidation, "fallback handler declared in secondary module")

// Unit is a loaded secondary source unit.
type Unit struct {
	// Path is the file the unit was read from.
	Path string

	// Dir is the package directory.
	Dir string

	// Package is the Go package name.
	Package string

	// ImportPath is the package's import path.
	ImportPath string

	// Imports maps the file's import names to import paths.
	Imports map[string]string

	// File is the parsed file.
	File *ast.File

	// Descriptor is the domain view of the unit.
	Descriptor *program.Descriptor
}

// Loader reads, parses and inspects source units.
type Loader struct {
	Fset    *token.FileSet
	Text    TextParser
	Program ProgramParser
	Module  *resolve.GoModule
}

// NewLoader returns a loader using go/parser and the domain parser for the
// given framework import path.
func NewLoader(mod *resolve.GoModule, framework string) *Loader {
	fset := token.NewFileSet()
	return &Loader{
		Fset:    fset,
		Text:    GoParser{},
		Program: DomainParser{program.NewParser(framework, fset)},
		Module:  mod,
	}
}

// Load reads and parses the secondary unit at path.
func (l *Loader) Load(path string) (*Unit, error) {
	file, err := l.parse(path)
	if err != nil {
		return nil, err
	}

	for _, imp := range file.Imports {
		if imp.Name != nil && imp.Name.Name == "." {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("dot import of %s", imp.Path.Value), l.Fset.Position(imp.Pos()).String(), "",
				"Import the package by name so relayed signatures can be qualified")
		}
	}

	env := &Envelope{
		Name:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Package: file.Name.Name,
		Public:  true,
		Imports: file.Imports,
		Decls:   file.Decls,
	}
	desc, err := l.Program.Parse(env)
	if err != nil {
		return nil, err
	}
	if desc.HasFallback() {
		return nil, fmt.Errorf("%s: %w", path, ErrFallbackInSecondary)
	}
	for _, ins := range desc.Instructions {
		if !ins.Exported() {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("instruction %s is not exported", ins.Name),
				l.Fset.Position(ins.Decl.Pos()).String(), "",
				"Rename it with a leading capital so the primary package can call it")
		}
	}

	dir := filepath.Dir(path)
	importPath, err := l.Module.ImportPath(dir)
	if err != nil {
		return nil, err
	}

	output.Debug("loaded secondary unit", "path", path, "package", importPath, "instructions", len(desc.Instructions))

	return &Unit{
		Path:       path,
		Dir:        dir,
		Package:    file.Name.Name,
		ImportPath: importPath,
		Imports:    l.importTable(file.Imports),
		File:       file,
		Descriptor: desc,
	}, nil
}

// LoadPrimary reads the primary file. It returns the module list of its
// //modprog:program directive, empty when there is none; consecutive
// directive lines are joined.
func (l *Loader) LoadPrimary(path string) (string, *merge.Module, error) {
	src, err := readSource(path)
	if err != nil {
		return "", nil, err
	}
	file, err := l.Text.ParseFile(l.Fset, path, src)
	if err != nil {
		return "", nil, parseError(path, err)
	}

	var args []string
	for _, group := range file.Comments {
		for _, c := range group.List {
			rest, ok := strings.CutPrefix(c.Text, DirectiveProgram)
			if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
				continue
			}
			args = append(args, strings.TrimSpace(rest))
		}
	}

	return strings.Join(args, " "), &merge.Module{
		Name:   file.Name.Name,
		Path:   path,
		Source: src,
		Fset:   l.Fset,
		File:   file,
	}, nil
}

// importTable maps the unit's import names to paths. Unnamed imports of
// packages inside the module are keyed by the name the package declares,
// which may differ from the last element of its path.
func (l *Loader) importTable(specs []*ast.ImportSpec) map[string]string {
	table := program.ImportTable(specs)
	for _, spec := range specs {
		if spec.Name != nil {
			continue
		}
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		dir, ok := l.Module.PackageDir(p)
		if !ok {
			continue
		}
		name, err := l.PackageName(dir)
		if err != nil {
			continue
		}
		if assumed := program.AssumedName(p); name != assumed && table[assumed] == p {
			delete(table, assumed)
			table[name] = p
		}
	}
	return table
}

// PackageName returns the package name declared by the Go files in dir.
func (l *Loader) PackageName(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", oerrors.NewNotFoundError(fmt.Sprintf("package directory %s does not exist", dir), dir, "")
		}
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		src, err := readSource(path)
		if err != nil {
			return "", err
		}
		file, err := l.Text.ParseFile(token.NewFileSet(), path, src)
		if err != nil {
			return "", parseError(path, err)
		}
		return file.Name.Name, nil
	}
	return "", oerrors.NewNotFoundError(fmt.Sprintf("no Go files in %s", dir), dir, "")
}

func (l *Loader) parse(path string) (*ast.File, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	file, err := l.Text.ParseFile(l.Fset, path, src)
	if err != nil {
		return nil, parseError(path, err)
	}
	return file, nil
}

func readSource(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	switch {
	case err == nil:
		return src, nil
	case os.IsNotExist(err):
		return nil, oerrors.NewNotFoundError(
			fmt.Sprintf("source unit %s does not exist", path), path,
			"Create the file or point the module at it with file_path")
	case os.IsPermission(err):
		return nil, oerrors.NewPermissionError(
			fmt.Sprintf("cannot read %s", path), map[string]string{"path": path}, "")
	default:
		return nil, fmt.Errorf("reading %s: %w: %w", path, oerrors.ErrNotFound, err)
	}
}

func parseError(path string, err error) error {
	return &oerrors.DetailError{
		Type:     "parse failed",
		Message:  err.Error(),
		Location: path,
		Cause:    oerrors.ErrValidation,
	}
}
