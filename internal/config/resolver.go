package config

import (
	"os"
	"strconv"

	"github.com/opmodel/modprog/internal/output"
)

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	// SourceFlag indicates value came from command-line flag.
	SourceFlag ConfigSource = "flag"
	// SourceEnv indicates value came from environment variable.
	SourceEnv ConfigSource = "env"
	// SourceConfig indicates value came from config file.
	SourceConfig ConfigSource = "config"
	// SourceDefault indicates value is the built-in default.
	SourceDefault ConfigSource = "default"
)

// Environment variables read by the resolver.
const (
	EnvConfig      = "MODPROG_CONFIG"
	EnvProjectRoot = "MODPROG_PROJECT_ROOT"
	EnvSourceRoot  = "MODPROG_SOURCE_ROOT"
	EnvExtension   = "MODPROG_EXTENSION"
	EnvRelayMode   = "MODPROG_RELAY_MODE"
	EnvFramework   = "MODPROG_FRAMEWORK"
	EnvOutput      = "MODPROG_OUTPUT"
	EnvTimestamps  = "MODPROG_LOG_TIMESTAMPS"
)

// ResolvedValue records the outcome of resolving one setting.
type ResolvedValue struct {
	Key    string
	Value  string
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// FlagValues holds command-line overrides. Empty strings and nil pointers
// mean the flag was not given.
type FlagValues struct {
	ProjectRoot string
	SourceRoot  string
	Extension   string
	RelayMode   string
	Framework   string
	Output      string
	Timestamps  *bool
}

// Settings is the fully resolved configuration.
type Settings struct {
	ProjectRoot string
	SourceRoot  string
	Extension   string
	RelayMode   string
	Framework   string
	Output      string
	Timestamps  bool

	// Values lists every resolution in a stable order.
	Values []ResolvedValue
}

// Resolve merges flags, environment, config file and defaults using the
// precedence flag > env > config > default. cfg may be nil.
func Resolve(flags FlagValues, cfg *Config) Settings {
	if cfg == nil {
		cfg = &Config{}
	}
	def := DefaultConfig()

	var s Settings
	add := func(v ResolvedValue) string {
		s.Values = append(s.Values, v)
		return v.Value
	}

	s.ProjectRoot = add(resolveString("projectRoot", flags.ProjectRoot, EnvProjectRoot, "", ""))
	s.SourceRoot = add(resolveString("sourceRoot", flags.SourceRoot, EnvSourceRoot, cfg.SourceRoot, def.SourceRoot))
	s.Extension = add(resolveString("extension", flags.Extension, EnvExtension, cfg.Extension, def.Extension))
	s.RelayMode = add(resolveString("relayMode", flags.RelayMode, EnvRelayMode, cfg.RelayMode, def.RelayMode))
	s.Framework = add(resolveString("framework", flags.Framework, EnvFramework, cfg.Framework, def.Framework))
	s.Output = add(resolveString("output", flags.Output, EnvOutput, cfg.Output, ""))

	var flagTS, cfgTS string
	if flags.Timestamps != nil {
		flagTS = strconv.FormatBool(*flags.Timestamps)
	}
	if cfg.Log.Timestamps != nil {
		cfgTS = strconv.FormatBool(*cfg.Log.Timestamps)
	}
	ts := add(resolveString("log.timestamps", flagTS, EnvTimestamps, cfgTS, "true"))
	// Unparseable env values fall back to the default.
	s.Timestamps = true
	if b, err := strconv.ParseBool(ts); err == nil {
		s.Timestamps = b
	}

	return s
}

// resolveString applies flag > env > config > default for one key.
func resolveString(key, flagValue, envName, configValue, defaultValue string) ResolvedValue {
	result := ResolvedValue{
		Key:      key,
		Shadowed: make(map[ConfigSource]string),
	}

	envValue := os.Getenv(envName)

	candidates := []struct {
		source ConfigSource
		value  string
	}{
		{SourceFlag, flagValue},
		{SourceEnv, envValue},
		{SourceConfig, configValue},
		{SourceDefault, defaultValue},
	}

	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		if result.Source == "" {
			result.Value = c.value
			result.Source = c.source
			continue
		}
		result.Shadowed[c.source] = c.value
	}
	if result.Source == "" {
		result.Source = SourceDefault
	}

	return result
}

// ResolveConfigPathResult contains the resolved config path and its source.
type ResolveConfigPathResult struct {
	// ConfigPath is the resolved config file path.
	ConfigPath string
	// Source indicates where the config path came from.
	Source ConfigSource
	// Shadowed contains values that were overridden by higher precedence.
	Shadowed map[ConfigSource]string
}

// ResolveConfigPath resolves the config file path using precedence:
// (1) --config flag, (2) MODPROG_CONFIG env, (3) modprog.yaml in root.
func ResolveConfigPath(flagValue, root string) (ResolveConfigPathResult, error) {
	result := ResolveConfigPathResult{
		Shadowed: make(map[ConfigSource]string),
	}

	envValue := os.Getenv(EnvConfig)

	defaultPath, err := DefaultConfigPath(root)
	if err != nil {
		return result, err
	}

	switch {
	case flagValue != "":
		result.ConfigPath = flagValue
		result.Source = SourceFlag
		if envValue != "" {
			result.Shadowed[SourceEnv] = envValue
		}
		result.Shadowed[SourceDefault] = defaultPath
	case envValue != "":
		result.ConfigPath = envValue
		result.Source = SourceEnv
		result.Shadowed[SourceDefault] = defaultPath
	default:
		result.ConfigPath = defaultPath
		result.Source = SourceDefault
	}

	return result, nil
}

// LogResolvedValues logs configuration resolution at DEBUG level.
func LogResolvedValues(values []ResolvedValue) {
	for _, v := range values {
		output.Debug("config value resolved",
			"key", v.Key,
			"value", v.Value,
			"source", v.Source,
		)
		for source, shadowed := range v.Shadowed {
			output.Debug("  shadowed by higher precedence",
				"key", v.Key,
				"shadowed_source", source,
				"shadowed_value", shadowed,
			)
		}
	}
}
