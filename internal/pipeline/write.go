package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// Write statuses, matching the output status styles.
const (
	StatusWritten   = "written"
	StatusUnchanged = "unchanged"
	StatusStale     = "stale"
)

// OutputPath returns where the generated file for primary goes. An empty
// name selects <stem>_gen.go; a relative name is taken from the primary's
// directory.
func OutputPath(primary, name string) string {
	if name == "" {
		stem := strings.TrimSuffix(filepath.Base(primary), filepath.Ext(primary))
		name = stem + "_gen.go"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(primary), name)
}

// WriteOutput writes src to path unless the file already holds it. With check
// set nothing is written and a differing file is reported as ErrStale.
func WriteOutput(path string, src []byte, check bool) (string, error) {
	current, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(current, src):
		return StatusUnchanged, nil
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	if check {
		return StatusStale, &oerrors.DetailError{
			Type:     "stale output",
			Message:  "generated file is missing or out of date",
			Location: path,
			Hint:     "Run modprog generate",
			Cause:    oerrors.ErrStale,
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".modprog-*.go")
	if err != nil {
		return "", permissionOr(err, path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", permissionOr(err, path)
	}
	return StatusWritten, nil
}

func permissionOr(err error, path string) error {
	if os.IsPermission(err) {
		return oerrors.NewPermissionError(
			fmt.Sprintf("cannot write %s", path), map[string]string{"path": path}, "")
	}
	return fmt.Errorf("writing %s: %w", path, err)
}
