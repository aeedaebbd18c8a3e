// Package resolve maps module specifications to source locations and Go
// import paths.
package resolve

import (
	"path/filepath"

	"github.com/opmodel/modprog/internal/spec"
)

// Defaults for the source-unit convention.
const (
	DefaultSourceRoot = "src"
	DefaultExtension  = ".go"
)

// BuildContext is the read-only build configuration the resolver works from.
type BuildContext struct {
	// ProjectRoot anchors every relative location.
	ProjectRoot string

	// SourceRoot is the directory under ProjectRoot holding source units.
	SourceRoot string

	// Extension is appended to convention-derived file names.
	Extension string
}

// WithDefaults fills empty fields with the convention defaults.
func (c BuildContext) WithDefaults() BuildContext {
	if c.SourceRoot == "" {
		c.SourceRoot = DefaultSourceRoot
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	return c
}

// Resolve returns the file to load for s. An explicit file_path wins and is
// joined to the project root unless absolute; otherwise the location is
// {root}/{src}/{seg1}/.../{segN}{ext}.
func (c BuildContext) Resolve(s spec.ModuleSpec) string {
	c = c.WithDefaults()
	if s.FilePath != nil {
		if filepath.IsAbs(*s.FilePath) {
			return filepath.Clean(*s.FilePath)
		}
		return filepath.Join(c.ProjectRoot, filepath.FromSlash(*s.FilePath))
	}
	return c.pathOf(s.Module.Segments) + c.Extension
}

// WrapperDir returns the package directory of a multi-segment wrapper path:
// every segment but the last, which names the function.
func (c BuildContext) WrapperDir(w spec.Path) string {
	c = c.WithDefaults()
	return c.pathOf(w.Parent().Segments)
}

func (c BuildContext) pathOf(segments []string) string {
	parts := append([]string{c.ProjectRoot, c.SourceRoot}, segments...)
	return filepath.Join(parts...)
}
