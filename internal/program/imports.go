package program

import (
	"go/ast"
	"strconv"
	"strings"
)

// AssumedName guesses the package name of an import path: the last element
// with a major version suffix skipped, a "go-" prefix and anything after the
// first dot removed.
//
//	AssumedName("gopkg.in/yaml.v3")                  == "yaml"
//	AssumedName("github.com/foo/go-bar/v2")          == "bar"
//	AssumedName("github.com/opmodel/modprog/pkg/program") == "program"
func AssumedName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	name = strings.TrimPrefix(name, "go-")
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ImportTable maps the names a file refers to its imports by onto import
// paths. Blank imports are skipped; dot imports are keyed ".".
func ImportTable(specs []*ast.ImportSpec) map[string]string {
	table := make(map[string]string, len(specs))
	for _, spec := range specs {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := AssumedName(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" {
			continue
		}
		table[name] = p
	}
	return table
}
