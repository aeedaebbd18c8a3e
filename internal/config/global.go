package config

// GlobalConfig carries root command flags to subcommands.
type GlobalConfig struct {
	// ConfigFlag is the --config value.
	ConfigFlag string

	// Verbose enables debug logging.
	Verbose bool

	// Timestamps is set when --timestamps was given.
	Timestamps *bool
}
