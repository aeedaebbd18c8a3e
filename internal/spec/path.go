package spec

import (
	"fmt"
	"strings"
)

// PathSeparator separates the segments of a symbolic path.
const PathSeparator = "::"

// Path is a symbolic module path such as foo::instructions.
type Path struct {
	Segments []string
}

// ParsePath parses a `::`-separated symbolic path.
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return Path{}, newError(KindSyntax, "", "empty symbolic path")
	}
	parts := strings.Split(s, PathSeparator)
	for _, p := range parts {
		if !isIdent(p) {
			return Path{}, newError(KindSyntax, "", fmt.Sprintf("invalid path segment %q in %q", p, s))
		}
	}
	return Path{Segments: parts}, nil
}

// MustParsePath is like ParsePath but panics on error. Intended for tests
// and static tables.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the `::`-joined path.
func (p Path) String() string {
	return strings.Join(p.Segments, PathSeparator)
}

// First returns the first segment, or "" for an empty path.
func (p Path) First() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0]
}

// Last returns the last segment, or "" for an empty path.
func (p Path) Last() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p.Segments) <= 1 {
		return Path{}
	}
	return Path{Segments: append([]string(nil), p.Segments[:len(p.Segments)-1]...)}
}

// IsZero reports whether the path has no segments.
func (p Path) IsZero() bool {
	return len(p.Segments) == 0
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
