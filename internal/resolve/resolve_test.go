package resolve

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/spec"
	"github.com/opmodel/modprog/internal/testutil"
)

func TestResolve(t *testing.T) {
	root := filepath.FromSlash("/work/program")
	ctx := BuildContext{ProjectRoot: root}

	tests := []struct {
		name string
		spec spec.ModuleSpec
		want string
	}{
		{
			name: "convention from path segments",
			spec: spec.ModuleSpec{Module: spec.MustParsePath("foo::instructions")},
			want: filepath.Join(root, "src", "foo", "instructions.go"),
		},
		{
			name: "single segment",
			spec: spec.ModuleSpec{Module: spec.MustParsePath("bar")},
			want: filepath.Join(root, "src", "bar.go"),
		},
		{
			name: "relative override",
			spec: spec.ModuleSpec{Module: spec.MustParsePath("foo"), FilePath: spec.StringPtr("src/foo/mod.go")},
			want: filepath.Join(root, "src", "foo", "mod.go"),
		},
		{
			name: "override wins over module path",
			spec: spec.ModuleSpec{Module: spec.MustParsePath("bar::instructions"), FilePath: spec.StringPtr("./other.go")},
			want: filepath.Join(root, "other.go"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ctx.Resolve(tt.spec))
		})
	}
}

func TestResolveAbsoluteOverride(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "unit.go")
	got := BuildContext{ProjectRoot: "/ignored"}.Resolve(spec.ModuleSpec{
		Module:   spec.MustParsePath("foo"),
		FilePath: spec.StringPtr(abs),
	})
	assert.Equal(t, abs, got)
}

func TestResolveCustomConvention(t *testing.T) {
	ctx := BuildContext{ProjectRoot: "/p", SourceRoot: "programs", Extension: ".ix.go"}
	got := ctx.Resolve(spec.ModuleSpec{Module: spec.MustParsePath("foo::bar")})
	assert.Equal(t, filepath.Join("/p", "programs", "foo", "bar.ix.go"), got)
}

func TestWrapperDir(t *testing.T) {
	ctx := BuildContext{ProjectRoot: "/p"}
	assert.Equal(t, filepath.Join("/p", "src", "wrap"), ctx.WrapperDir(spec.MustParsePath("wrap::Doubled")))
}

func TestFindGoModule(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "go.mod", "module example.com/big\n\ngo 1.25\n")
	nested := filepath.Join(dir, "src", "foo")
	testutil.WriteFile(t, nested, "mod.go", "package foo\n")

	mod, err := FindGoModule(nested)
	require.NoError(t, err)
	assert.Equal(t, "example.com/big", mod.Path)

	wantDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(mod.Dir)
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir)

	t.Run("import path of nested dir", func(t *testing.T) {
		ip, err := mod.ImportPath(nested)
		require.NoError(t, err)
		assert.Equal(t, "example.com/big/src/foo", ip)
	})

	t.Run("import path of module root", func(t *testing.T) {
		ip, err := mod.ImportPath(mod.Dir)
		require.NoError(t, err)
		assert.Equal(t, "example.com/big", ip)
	})

	t.Run("outside the module", func(t *testing.T) {
		_, err := mod.ImportPath(filepath.Dir(mod.Dir))
		assert.True(t, errors.Is(err, oerrors.ErrValidation))
	})
}

func TestPackageDir(t *testing.T) {
	mod := &GoModule{Dir: "/work/big", Path: "example.com/big"}

	tests := []struct {
		importPath string
		want       string
		ok         bool
	}{
		{"example.com/big", "/work/big", true},
		{"example.com/big/src/bar", filepath.Join("/work/big", "src", "bar"), true},
		{"example.com/bigger/src", "", false},
		{"fmt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.importPath, func(t *testing.T) {
			got, ok := mod.PackageDir(tt.importPath)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindGoModuleMissingModulePath(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "go.mod", "go 1.25\n")

	_, err := FindGoModule(dir)
	assert.True(t, errors.Is(err, oerrors.ErrValidation))
}
