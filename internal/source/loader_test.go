package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/resolve"
	"github.com/opmodel/modprog/internal/testutil"
)

const barUnit = `package bar

import (
	"github.com/opmodel/modprog/pkg/program"
	acct "example.com/big/src/accounts"
)

// Instr is relayed as bar_Instr.
func Instr(ctx *program.Context[acct.Init], n uint64) error { return nil }

func helper() {}
`

func newLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	mod, err := resolve.FindGoModule(dir)
	require.NoError(t, err)
	return NewLoader(mod, "")
}

func TestLoad(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", map[string]string{
		"src/bar/instructions.go": barUnit,
	})

	unit, err := newLoader(t, dir).Load(filepath.Join(dir, "src", "bar", "instructions.go"))
	require.NoError(t, err)

	assert.Equal(t, "bar", unit.Package)
	assert.Equal(t, "example.com/big/src/bar", unit.ImportPath)
	assert.Equal(t, []string{"Instr"}, unit.Descriptor.Names())
	assert.Equal(t, "example.com/big/src/accounts", unit.Imports["acct"])
	assert.Equal(t, "github.com/opmodel/modprog/pkg/program", unit.Imports["program"])
}

func TestLoadImportDeclaredName(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", map[string]string{
		"src/util/amount.go": "package helpers\n\ntype Amount uint64\n",
		"src/pay.go": `package pay

import (
	"example.com/big/src/util"

	"github.com/opmodel/modprog/pkg/program"
)

func Pay(ctx *program.Context[struct{}], a helpers.Amount) error { return nil }
`,
	})

	unit, err := newLoader(t, dir).Load(filepath.Join(dir, "src", "pay.go"))
	require.NoError(t, err)

	assert.Equal(t, "example.com/big/src/util", unit.Imports["helpers"])
	assert.NotContains(t, unit.Imports, "util")
	assert.Equal(t, "github.com/opmodel/modprog/pkg/program", unit.Imports["program"])
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		sentinel error
		contains string
	}{
		{
			name: "fallback in secondary",
			src: `package bar

import "github.com/opmodel/modprog/pkg/program"

func Fallback(ctx *program.FallbackContext) error { return nil }
`,
			sentinel: ErrFallbackInSecondary,
		},
		{
			name: "unexported instruction",
			src: `package bar

import "github.com/opmodel/modprog/pkg/program"

func instr(ctx *program.Context[int]) error { return nil }
`,
			sentinel: oerrors.ErrValidation,
			contains: "instruction instr is not exported",
		},
		{
			name: "dot import",
			src: `package bar

import . "github.com/opmodel/modprog/pkg/program"

func Instr(ctx *Context[int]) error { return nil }
`,
			sentinel: oerrors.ErrValidation,
			contains: "dot import",
		},
		{
			name:     "syntax error",
			src:      "package bar\n\nfunc Instr( {\n",
			sentinel: oerrors.ErrValidation,
			contains: "parse failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.Project(t, "example.com/big", map[string]string{"src/bar.go": tt.src})

			_, err := newLoader(t, dir).Load(filepath.Join(dir, "src", "bar.go"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.True(t, errors.Is(err, oerrors.ErrValidation))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", nil)

	_, err := newLoader(t, dir).Load(filepath.Join(dir, "src", "missing.go"))
	assert.True(t, errors.Is(err, oerrors.ErrNotFound))
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := testutil.Project(t, "example.com/big", map[string]string{"src/bar.go": barUnit})
	path := filepath.Join(dir, "src", "bar.go")
	require.NoError(t, os.Chmod(path, 0o000))

	_, err := newLoader(t, dir).Load(path)
	assert.True(t, errors.Is(err, oerrors.ErrPermission))
}

func TestLoadPrimary(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", map[string]string{
		"program.go": `//go:build modprog

//modprog:program modules=[bar::instructions,
//modprog:program { module: foo, prefix: "oof" }]
package big

func Own() {}
`,
	})

	modules, mod, err := newLoader(t, dir).LoadPrimary(filepath.Join(dir, "program.go"))
	require.NoError(t, err)

	assert.Equal(t, `modules=[bar::instructions, { module: foo, prefix: "oof" }]`, modules)
	assert.Equal(t, "big", mod.Name)
	require.NotNil(t, mod.File)
	assert.NotEmpty(t, mod.Source)
}

func TestLoadPrimaryWithoutDirective(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", map[string]string{"program.go": "package big\n"})

	modules, _, err := newLoader(t, dir).LoadPrimary(filepath.Join(dir, "program.go"))
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestPackageName(t *testing.T) {
	dir := testutil.Project(t, "example.com/big", map[string]string{
		"src/wrap/wrap_test.go": "package wrap_test\n",
		"src/wrap/wrap.go":      "package wrap\n",
	})
	l := newLoader(t, dir)

	name, err := l.PackageName(filepath.Join(dir, "src", "wrap"))
	require.NoError(t, err)
	assert.Equal(t, "wrap", name)

	_, err = l.PackageName(filepath.Join(dir, "src", "nope"))
	assert.True(t, errors.Is(err, oerrors.ErrNotFound))
}
