package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/testutil"
)

func execute(t *testing.T, c *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&errOut)
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), errOut.String(), err
}

// isolate points config resolution at a fresh project root.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvProjectRoot, dir)
	return dir
}

func TestNewConfigCmd(t *testing.T) {
	c := NewConfigCmd(&config.GlobalConfig{})

	assert.Equal(t, "config", c.Use)
	names := make([]string, 0, len(c.Commands()))
	for _, sub := range c.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"init", "vet"}, names)
}

func TestConfigInit(t *testing.T) {
	t.Run("creates default config", func(t *testing.T) {
		dir := isolate(t)

		out, _, err := execute(t, NewConfigInitCmd(&config.GlobalConfig{}))
		require.NoError(t, err)

		path := filepath.Join(dir, config.FileName)
		assert.Contains(t, out, path)

		var got config.Config
		require.NoError(t, yaml.Unmarshal([]byte(testutil.ReadFile(t, path)), &got))
		assert.Equal(t, *config.DefaultConfig(), got)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := isolate(t)
		testutil.WriteFile(t, dir, config.FileName, "relayMode: wrapped\n")

		_, _, err := execute(t, NewConfigInitCmd(&config.GlobalConfig{}))

		require.Error(t, err)
		assert.Equal(t, oerrors.ExitGeneralError, oerrors.ExitCodeFromError(err))
		assert.Equal(t, "relayMode: wrapped\n", testutil.ReadFile(t, filepath.Join(dir, config.FileName)))
	})

	t.Run("force overwrites", func(t *testing.T) {
		dir := isolate(t)
		testutil.WriteFile(t, dir, config.FileName, "relayMode: wrapped\n")

		_, _, err := execute(t, NewConfigInitCmd(&config.GlobalConfig{}), "--force")

		require.NoError(t, err)
		assert.Contains(t, testutil.ReadFile(t, filepath.Join(dir, config.FileName)), "relayMode: direct")
	})

	t.Run("explicit path", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "nested", "custom.yaml")

		_, _, err := execute(t, NewConfigInitCmd(&config.GlobalConfig{ConfigFlag: path}))

		require.NoError(t, err)
		assert.FileExists(t, path)
	})
}

func TestConfigVet(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		isolate(t)

		_, _, err := execute(t, NewConfigVetCmd(&config.GlobalConfig{}))

		require.Error(t, err)
		assert.Equal(t, oerrors.ExitNotFound, oerrors.ExitCodeFromError(err))
	})

	t.Run("valid file", func(t *testing.T) {
		dir := isolate(t)
		testutil.WriteFile(t, dir, config.FileName, "sourceRoot: units\nrelayMode: wrapped\n")

		out, _, err := execute(t, NewConfigVetCmd(&config.GlobalConfig{}))

		require.NoError(t, err)
		assert.Contains(t, out, "Config file is valid")
	})

	t.Run("generated file is valid", func(t *testing.T) {
		isolate(t)

		_, _, err := execute(t, NewConfigInitCmd(&config.GlobalConfig{}))
		require.NoError(t, err)

		_, _, err = execute(t, NewConfigVetCmd(&config.GlobalConfig{}))
		assert.NoError(t, err)
	})

	t.Run("invalid file", func(t *testing.T) {
		dir := isolate(t)
		testutil.WriteFile(t, dir, config.FileName, "relayMode: sideways\nregistry: x\n")

		_, errOut, err := execute(t, NewConfigVetCmd(&config.GlobalConfig{}))

		require.Error(t, err)
		assert.Equal(t, oerrors.ExitValidationError, oerrors.ExitCodeFromError(err))
		assert.Contains(t, errOut, "config validation failed")
		assert.Contains(t, errOut, "registry")

		var exitErr *oerrors.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.True(t, exitErr.Printed)
	})

	t.Run("file outside project", func(t *testing.T) {
		isolate(t)
		path := testutil.WriteFile(t, t.TempDir(), "custom.yaml", "extension: .go\n")

		_, _, err := execute(t, NewConfigVetCmd(&config.GlobalConfig{ConfigFlag: path}))
		assert.NoError(t, err)

		require.NoError(t, os.Remove(path))
		_, _, err = execute(t, NewConfigVetCmd(&config.GlobalConfig{ConfigFlag: path}))
		assert.Equal(t, oerrors.ExitNotFound, oerrors.ExitCodeFromError(err))
	})
}
