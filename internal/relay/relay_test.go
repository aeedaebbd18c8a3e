package relay

import (
	"errors"
	"go/parser"
	"go/token"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/merge"
	"github.com/opmodel/modprog/internal/resolve"
	"github.com/opmodel/modprog/internal/source"
	"github.com/opmodel/modprog/internal/spec"
	"github.com/opmodel/modprog/internal/testutil"
)

const primarySrc = `//go:build modprog

package big

import "github.com/opmodel/modprog/pkg/program"

func Own(ctx *program.Context[struct{}]) error { return nil }
`

const fooSrc = `package foo

import "github.com/opmodel/modprog/pkg/program"

type Accounts struct{}

// Instr records n.
//modprog:discriminator 1,2,3,4,5,6,7,8
func Instr(ctx *program.Context[Accounts], n uint64) error { return nil }
`

const barSrc = `package bar

import (
	"time"

	"github.com/opmodel/modprog/pkg/program"
	acct "example.com/big/src/accounts"
)

type Init struct{}

func Instr(ctx *program.Context[Init], n uint64) error { return nil }

func Schedule(_ *program.Context[acct.Payer], _ time.Duration, at map[string][]Init, cb func(error) bool) (int, error) {
	return 0, nil
}

func Batch(c *program.Context[Init], amounts ...uint64) error { return nil }

func Map[T any, K comparable](ctx *program.Context[Init], keys []K, fn func(K) T) error { return nil }

func Touch(*program.Context[Init]) {}
`

type fixture struct {
	dir    string
	ctx    resolve.BuildContext
	loader *source.Loader
	gen    *Generator
}

func newFixture(t *testing.T, primary string, mode Mode) *fixture {
	t.Helper()
	dir := testutil.Project(t, "example.com/big", map[string]string{
		"program.go":              primary,
		"src/foo/mod.go":          fooSrc,
		"src/bar/instructions.go": barSrc,
		"src/wrap/wrap.go":        "package wrap\n\nfunc Doubled[F any](fn F) F { return fn }\n",
	})
	mod, err := resolve.FindGoModule(dir)
	require.NoError(t, err)

	loader := source.NewLoader(mod, "")
	_, primaryMod, err := loader.LoadPrimary(filepath.Join(dir, "program.go"))
	require.NoError(t, err)

	return &fixture{
		dir:    dir,
		ctx:    resolve.BuildContext{ProjectRoot: dir},
		loader: loader,
		gen:    NewGenerator(primaryMod.File, "example.com/big", "", mode),
	}
}

func (f *fixture) target(t *testing.T, entry string) Target {
	t.Helper()
	specs, err := spec.ParseModuleList("[" + entry + "]")
	require.NoError(t, err)
	s := specs[0]

	unit, err := f.loader.Load(f.ctx.Resolve(s))
	require.NoError(t, err)

	tgt := Target{Spec: s, Unit: unit}
	if s.Wrapper != nil {
		tgt.Wrapper = &Wrapper{Func: s.Wrapper.Last()}
		if len(s.Wrapper.Segments) > 1 {
			tgt.Wrapper.ImportPath = "example.com/big/src/" + s.Wrapper.Parent().String()
			tgt.Wrapper.Package = s.Wrapper.Parent().Last()
		}
	}
	return tgt
}

func relayByName(t *testing.T, relays []*Relay, name string) *Relay {
	t.Helper()
	for _, r := range relays {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("relay %s not generated", name)
	return nil
}

func TestGenerateNaming(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)

	relays, err := f.gen.Generate([]Target{
		f.target(t, "bar::instructions"),
		f.target(t, `{ module: foo, file_path: "src/foo/mod.go", prefix: "oof" }`),
	})
	require.NoError(t, err)

	var names []string
	for _, r := range relays {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bar_Instr", "bar_Schedule", "bar_Batch", "bar_Map", "bar_Touch", "oof_Instr"}, names)
}

func TestGenerateEmptyPrefix(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)

	relays, err := f.gen.Generate([]Target{f.target(t, `{ module: foo, file_path: "src/foo/mod.go", prefix: "" }`)})
	require.NoError(t, err)
	require.Len(t, relays, 1)
	assert.Equal(t, "Instr", relays[0].Name)
}

func TestGenerateDirectBody(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)

	relays, err := f.gen.Generate([]Target{f.target(t, "bar::instructions")})
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{
			name: "bar_Instr",
			want: "func bar_Instr(ctx *program.Context[bar.Init], n uint64) error {\n\treturn bar.Instr(ctx, n)\n}\n",
		},
		{
			name: "bar_Schedule",
			want: "func bar_Schedule(ctx *program.Context[accounts.Payer], arg1 time.Duration, at map[string][]bar.Init, cb func(error) bool) (int, error) {\n" +
				"\treturn bar.Schedule(ctx, arg1, at, cb)\n}\n",
		},
		{
			name: "bar_Batch",
			want: "func bar_Batch(c *program.Context[bar.Init], amounts ...uint64) error {\n\treturn bar.Batch(c, amounts...)\n}\n",
		},
		{
			name: "bar_Map",
			want: "func bar_Map[T any, K comparable](ctx *program.Context[bar.Init], keys []K, fn func(K) T) error {\n" +
				"\treturn bar.Map[T, K](ctx, keys, fn)\n}\n",
		},
		{
			name: "bar_Touch",
			want: "func bar_Touch(ctx *program.Context[bar.Init]) {\n\tbar.Touch(ctx)\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := relayByName(t, relays, tt.name)
			assert.Equal(t, tt.want, r.Source)
			assert.Empty(t, r.Wrapper)
			require.NotNil(t, r.Decl)
			assert.Equal(t, tt.name, r.Decl.Name.Name)
		})
	}
}

func TestGenerateInlineTypes(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)
	testutil.WriteFile(t, f.dir, "src/baz.go", `package baz

import "github.com/opmodel/modprog/pkg/program"

func Go(ctx *program.Context[struct{}], v interface{}, p struct{ A int }) error { return nil }
`)

	relays, err := f.gen.Generate([]Target{f.target(t, "baz")})
	require.NoError(t, err)
	require.Len(t, relays, 1)

	assert.Equal(t,
		"func baz_Go(ctx *program.Context[struct{}], v interface{}, p struct{ A int }) error {\n\treturn baz.Go(ctx, v, p)\n}\n",
		relays[0].Source)
}

func TestGeneratePrimaryPackageUnit(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)
	testutil.WriteFile(t, f.dir, "extra.go", `package big

import "github.com/opmodel/modprog/pkg/program"

func Extra(ctx *program.Context[struct{}]) error { return nil }
`)

	t.Run("prefixed relay calls the local function", func(t *testing.T) {
		relays, err := f.gen.Generate([]Target{f.target(t, `{ module: extra, file_path: "extra.go", prefix: "x" }`)})
		require.NoError(t, err)
		require.Len(t, relays, 1)
		assert.Equal(t, "func x_Extra(ctx *program.Context[struct{}]) error {\n\treturn Extra(ctx)\n}\n", relays[0].Source)
	})

	t.Run("empty prefix redeclares the function", func(t *testing.T) {
		_, err := f.gen.Generate([]Target{f.target(t, `{ module: extra, file_path: "extra.go", prefix: "" }`)})
		require.Error(t, err)
		assert.ErrorIs(t, err, oerrors.ErrValidation)
		assert.Contains(t, err.Error(), "redeclares Extra")
	})
}

func TestGenerateImports(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)

	_, err := f.gen.Generate([]Target{f.target(t, "bar::instructions")})
	require.NoError(t, err)

	assert.Equal(t, []merge.Import{
		{Path: "example.com/big/src/bar"},
		{Name: "accounts", Path: "example.com/big/src/accounts"},
		{Name: "time", Path: "time"},
	}, f.gen.Imports.Added())
}

func TestGenerateWrapper(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)

	relays, err := f.gen.Generate([]Target{
		f.target(t, `{ module: foo, file_path: "src/foo/mod.go", prefix: "oof", wrapper: wrap::Doubled }`),
	})
	require.NoError(t, err)
	require.Len(t, relays, 1)

	r := relays[0]
	assert.Equal(t, "wrap.Doubled", r.Wrapper)
	assert.Equal(t, "foo.Instr", r.Target)
	assert.Contains(t, r.Source, "return wrap.Doubled(foo.Instr)(ctx, n)")
	assert.Equal(t, []string{"// Instr records n.", "//modprog:discriminator 1,2,3,4,5,6,7,8"}, r.Doc)

	decls, err := f.gen.Decls(relays)
	require.NoError(t, err)
	require.Len(t, decls, 1, "an explicit wrapper needs no default wrapper")
}

func TestGenerateLocalWrapper(t *testing.T) {
	f := newFixture(t, primarySrc+"\nfunc audit[F any](fn F) F { return fn }\n", ModeDirect)

	relays, err := f.gen.Generate([]Target{f.target(t, `{ module: bar::instructions, wrapper: audit }`)})
	require.NoError(t, err)
	assert.Contains(t, relayByName(t, relays, "bar_Instr").Source, "return audit(bar.Instr)(ctx, n)")
}

func TestGenerateWrappedMode(t *testing.T) {
	t.Run("injects default wrapper", func(t *testing.T) {
		f := newFixture(t, primarySrc, ModeWrapped)

		relays, err := f.gen.Generate([]Target{f.target(t, `{ module: foo, file_path: "src/foo/mod.go", prefix: "oof" }`)})
		require.NoError(t, err)
		assert.Contains(t, relays[0].Source, "return relayInstruction(foo.Instr)(ctx, n)")

		decls, err := f.gen.Decls(relays)
		require.NoError(t, err)
		require.Len(t, decls, 2)
		assert.Equal(t, DefaultWrapperName, decls[0].Name)
		assert.Equal(t, "oof_Instr", decls[1].Name)
	})

	t.Run("primary provides its own", func(t *testing.T) {
		f := newFixture(t, primarySrc+"\nfunc relayInstruction[F any](fn F) F { return fn }\n", ModeWrapped)

		relays, err := f.gen.Generate([]Target{f.target(t, `{ module: foo, file_path: "src/foo/mod.go" }`)})
		require.NoError(t, err)

		decls, err := f.gen.Decls(relays)
		require.NoError(t, err)
		require.Len(t, decls, 1)
		assert.Equal(t, "foo_Instr", decls[0].Name)
	})
}

func TestGenerateUnexportedWrapper(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)
	tgt := f.target(t, "bar::instructions")
	tgt.Wrapper = &Wrapper{Func: "doubled", ImportPath: "example.com/big/src/wrap", Package: "wrap"}

	_, err := f.gen.Generate([]Target{tgt})
	assert.True(t, errors.Is(err, oerrors.ErrValidation))
}

func TestGenerateParamShadowingPackage(t *testing.T) {
	f := newFixture(t, primarySrc, ModeDirect)
	testutil.WriteFile(t, f.dir, "src/baz.go", `package baz

import "github.com/opmodel/modprog/pkg/program"

func Instr(baz *program.Context[int], baz_ string) error { return nil }
`)

	relays, err := f.gen.Generate([]Target{f.target(t, "baz")})
	require.NoError(t, err)
	assert.Equal(t,
		"func baz_Instr(baz__ *program.Context[int], baz_ string) error {\n\treturn baz.Instr(baz__, baz_)\n}\n",
		relays[0].Source)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeDirect, "direct": ModeDirect, "Wrapped": ModeWrapped} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("inline")
	assert.True(t, errors.Is(err, oerrors.ErrValidation))
}

func TestImportSet(t *testing.T) {
	file, err := parser.ParseFile(token.NewFileSet(), "p.go", `package big

import (
	"example.com/big/src/bar"
	rt "github.com/opmodel/modprog/pkg/program"
)

type foo struct{}
`, 0)
	require.NoError(t, err)
	s := NewImportSet(file)

	assert.Equal(t, "bar", s.Alias("example.com/big/src/bar", "bar"), "existing import is reused")
	assert.Equal(t, "rt", s.Alias("github.com/opmodel/modprog/pkg/program", "program"))
	assert.Equal(t, "bar2", s.Alias("example.com/other/bar", "bar"), "name taken by another path")
	assert.Equal(t, "foo2", s.Alias("example.com/big/src/foo", "foo"), "name taken by a declaration")
	assert.Equal(t, "baz", s.Alias("example.com/big/src/baz", "baz"))
	assert.Equal(t, "baz", s.Alias("example.com/big/src/baz", "baz"), "allocation is stable")

	assert.Equal(t, []merge.Import{
		{Name: "bar2", Path: "example.com/other/bar"},
		{Name: "foo2", Path: "example.com/big/src/foo"},
		{Path: "example.com/big/src/baz"},
	}, s.Added())
}
