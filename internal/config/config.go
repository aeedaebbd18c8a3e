// Package config provides configuration loading and management.
package config

import (
	"github.com/opmodel/modprog/internal/program"
	"github.com/opmodel/modprog/internal/relay"
	"github.com/opmodel/modprog/internal/resolve"
)

// LogConfig contains logging-related settings.
type LogConfig struct {
	// Timestamps controls whether timestamps are shown in log output.
	// Default: true. Override with --timestamps flag.
	Timestamps *bool `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
}

// Config represents the modprog project configuration.
// Loaded from modprog.yaml in the project root, validated against the
// embedded CUE schema.
type Config struct {
	// SourceRoot is the directory under the project root holding secondary
	// units. Env: MODPROG_SOURCE_ROOT, Default: src
	SourceRoot string `json:"sourceRoot,omitempty" yaml:"sourceRoot,omitempty"`

	// Extension is appended to convention-derived unit paths.
	// Env: MODPROG_EXTENSION, Default: .go
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`

	// RelayMode is "direct" or "wrapped".
	// Env: MODPROG_RELAY_MODE, Default: direct
	RelayMode string `json:"relayMode,omitempty" yaml:"relayMode,omitempty"`

	// Framework is the import path of the runtime package.
	// Env: MODPROG_FRAMEWORK
	Framework string `json:"framework,omitempty" yaml:"framework,omitempty"`

	// Output names the generated file. Empty means <primary>_gen.go.
	// Env: MODPROG_OUTPUT
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Log contains logging-related settings.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`
}

// DefaultConfig returns a Config with all default values populated.
// Used by `modprog config init` to generate the initial config file.
func DefaultConfig() *Config {
	return &Config{
		SourceRoot: resolve.DefaultSourceRoot,
		Extension:  resolve.DefaultExtension,
		RelayMode:  string(relay.ModeDirect),
		Framework:  program.DefaultFramework,
	}
}
