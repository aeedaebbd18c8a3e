package relay

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/program"
)

// ImportSet allocates the names the primary file refers to packages by.
// Imports already present in the primary are reused; new ones get the
// package name, then name2, name3 and so on when that name is taken.
type ImportSet struct {
	byPath map[string]string
	taken  map[string]bool
	added  []merge.Import
}

// NewImportSet seeds the set from the primary file's imports. Its top-level
// declaration names are reserved.
func NewImportSet(primary *ast.File) *ImportSet {
	s := &ImportSet{
		byPath: make(map[string]string),
		taken:  make(map[string]bool),
	}
	if primary == nil {
		return s
	}

	for name, path := range program.ImportTable(primary.Imports) {
		if name == "." {
			continue
		}
		s.taken[name] = true
		if _, ok := s.byPath[path]; !ok || name < s.byPath[path] {
			s.byPath[path] = name
		}
	}
	s.Reserve(TopLevelNames(primary)...)
	return s
}

// Reserve marks names as unavailable for new imports.
func (s *ImportSet) Reserve(names ...string) {
	for _, n := range names {
		s.taken[n] = true
	}
}

// Alias returns the name to refer to importPath by, adding the import when
// needed. pkgName is the package's declared name, or empty when unknown.
func (s *ImportSet) Alias(importPath, pkgName string) string {
	if alias, ok := s.byPath[importPath]; ok {
		return alias
	}

	base := pkgName
	if base == "" {
		base = program.AssumedName(importPath)
	}
	alias := base
	for n := 2; s.taken[alias] || token.IsKeyword(alias); n++ {
		alias = fmt.Sprintf("%s%d", base, n)
	}

	imp := merge.Import{Path: importPath}
	if pkgName == "" || alias != pkgName {
		imp.Name = alias
	}
	s.byPath[importPath] = alias
	s.taken[alias] = true
	s.added = append(s.added, imp)
	return alias
}

// Added returns the imports allocated so far, in allocation order.
func (s *ImportSet) Added() []merge.Import {
	return append([]merge.Import(nil), s.added...)
}

// TopLevelNames returns the package-scope names a file declares.
func TopLevelNames(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				names = append(names, d.Name.Name)
			}
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch sp := spec.(type) {
				case *ast.TypeSpec:
					names = append(names, sp.Name.Name)
				case *ast.ValueSpec:
					for _, n := range sp.Names {
						names = append(names, n.Name)
					}
				}
			}
		}
	}
	return names
}
