package program

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

func parse(t *testing.T, src string) (*Descriptor, error) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "unit.go", src, parser.ParseComments)
	require.NoError(t, err)
	return NewParser("", fset).ParseFile(file)
}

const header = `package foo

import (
	"context"

	"github.com/opmodel/modprog/pkg/program"
)
`

func TestParseInstructions(t *testing.T) {
	desc, err := parse(t, header+`
type Accounts struct{}

// Instr doubles nothing.
//modprog:discriminator 1,2,3,4,5,6,7,8
func Instr(ctx *program.Context[Accounts], n uint64) error { return nil }

func helper(n uint64) uint64 { return n }

func (a Accounts) Method(ctx *program.Context[Accounts]) error { return nil }

func Batch(_ *program.Context[Accounts], a, _ int, rest ...string) error { return nil }

func Ping(*program.Context[Accounts]) {}

func Ctx(c context.Context) error { return nil }
`)
	require.NoError(t, err)

	assert.Equal(t, "foo", desc.Package)
	assert.Equal(t, []string{"Instr", "Batch", "Ping"}, desc.Names())
	assert.False(t, desc.HasFallback())

	instr := desc.Instructions[0]
	assert.Equal(t, "1,2,3,4,5,6,7,8", instr.DiscriminatorDirective)
	assert.Equal(t, []string{"// Instr doubles nothing.", "//modprog:discriminator 1,2,3,4,5,6,7,8"}, instr.Doc)
	assert.Equal(t, "Accounts", instr.Accounts.(*ast.Ident).Name)
	require.Len(t, instr.Params, 2)
	assert.Equal(t, "ctx", instr.Params[0].Name)
	assert.Equal(t, "n", instr.Params[1].Name)

	batch := desc.Instructions[1]
	require.Len(t, batch.Params, 4)
	assert.True(t, batch.Params[0].Blank)
	assert.Equal(t, "a", batch.Params[1].Name)
	assert.True(t, batch.Params[2].Blank)
	assert.True(t, batch.Params[3].Variadic)
	assert.Equal(t, "string", batch.Params[3].Type.(*ast.Ident).Name)

	ping := desc.Instructions[2]
	require.Len(t, ping.Params, 1)
	assert.True(t, ping.Params[0].Blank)
	assert.Nil(t, ping.Results)
}

func TestParseRenamedFrameworkImport(t *testing.T) {
	desc, err := parse(t, `package foo

import rt "github.com/opmodel/modprog/pkg/program"

func Instr(ctx *rt.Context[struct{}]) error { return nil }
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Instr"}, desc.Names())
}

func TestParseIgnoresForeignContext(t *testing.T) {
	desc, err := parse(t, `package foo

import "example.com/other/program"

func Instr(ctx *program.Context[int]) error { return nil }
`)
	require.NoError(t, err)
	assert.Empty(t, desc.Instructions)
}

func TestParseFallback(t *testing.T) {
	t.Run("by name", func(t *testing.T) {
		desc, err := parse(t, header+`
func Fallback(ctx *program.FallbackContext) error { return nil }
`)
		require.NoError(t, err)
		assert.True(t, desc.HasFallback())
		assert.Empty(t, desc.Instructions)
	})

	t.Run("by directive", func(t *testing.T) {
		desc, err := parse(t, header+`
//modprog:fallback
func catchAll(ctx *program.FallbackContext) error { return nil }
`)
		require.NoError(t, err)
		require.Len(t, desc.Fallbacks, 1)
		assert.Equal(t, "catchAll", desc.Fallbacks[0].Name.Name)
	})

	t.Run("directive with wrong signature", func(t *testing.T) {
		_, err := parse(t, header+`
//modprog:fallback
func catchAll(data []byte) error { return nil }
`)
		assert.True(t, errors.Is(err, oerrors.ErrValidation))
	})

	t.Run("name alone is not enough", func(t *testing.T) {
		desc, err := parse(t, header+`
func Fallback(data []byte) error { return nil }
`)
		require.NoError(t, err)
		assert.False(t, desc.HasFallback())
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"two type arguments", `func Instr(ctx *program.Context[int, string]) error { return nil }`},
		{"missing type argument", `func Instr(ctx *program.Context) error { return nil }`},
		{"non-error last result", `func Instr(ctx *program.Context[int]) (error, int) { return nil, 0 }`},
		{"two discriminators", "//modprog:discriminator 1\n//modprog:discriminator 2\nfunc Instr(ctx *program.Context[int]) error { return nil }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, header+"\n"+tt.body+"\n")
			require.Error(t, err)
			assert.True(t, errors.Is(err, oerrors.ErrValidation))
			assert.Contains(t, err.Error(), "unit.go:")
		})
	}
}

func TestAssumedName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"fmt", "fmt"},
		{"github.com/opmodel/modprog/pkg/program", "program"},
		{"gopkg.in/yaml.v3", "yaml"},
		{"github.com/foo/go-bar/v2", "bar"},
		{"example.com/big/src/foo-util", "foo_util"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, AssumedName(tt.path))
		})
	}
}
