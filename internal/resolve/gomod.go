package resolve

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// GoModule is the Go module enclosing a project.
type GoModule struct {
	// Dir is the directory holding go.mod.
	Dir string

	// Path is the module path declared in go.mod.
	Path string
}

// FindGoModule walks up from dir to the nearest go.mod.
func FindGoModule(dir string) (*GoModule, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	for cur := abs; ; {
		gomod := filepath.Join(cur, "go.mod")
		data, err := os.ReadFile(gomod)
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return nil, oerrors.NewValidationError("go.mod declares no module path", gomod, "", "")
			}
			return &GoModule{Dir: cur, Path: modPath}, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", gomod, err)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, oerrors.NewNotFoundError(
				fmt.Sprintf("no go.mod found in %s or any parent directory", abs), abs,
				"Run modprog inside a Go module")
		}
		cur = parent
	}
}

// PackageDir returns the directory of importPath when the package belongs
// to this module.
func (m *GoModule) PackageDir(importPath string) (string, bool) {
	if importPath == m.Path {
		return m.Dir, true
	}
	rest, ok := strings.CutPrefix(importPath, m.Path+"/")
	if !ok {
		return "", false
	}
	return filepath.Join(m.Dir, filepath.FromSlash(rest)), true
}

// ImportPath returns the import path of the package in dir.
func (m *GoModule) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	rel, err := filepath.Rel(m.Dir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", oerrors.NewValidationError(
			fmt.Sprintf("%s is outside module %s", abs, m.Path), abs, "",
			"Secondary units must live inside the module that contains the program")
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}
