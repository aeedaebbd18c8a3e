// Package testutil provides fixture helpers for modprog tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of a file, failing the test when it is missing.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(data)
}

// Project lays out a throwaway Go module for generator tests. Files are keyed
// by slash-separated paths relative to the module root; a go.mod declaring
// modulePath is always written.
func Project(t *testing.T, modulePath string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, "go.mod", "module "+modulePath+"\n\ngo 1.25\n")
	for name, content := range files {
		WriteFile(t, dir, filepath.FromSlash(name), content)
	}
	return dir
}
