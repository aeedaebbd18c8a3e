package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	oerrors "github.com/opmodel/modprog/internal/errors"
)

// Loader reads the project configuration file. Environment overrides are
// applied by the resolver so every value's source can be reported.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load loads configuration from the given file path. A missing file yields
// an empty configuration.
func (l *Loader) Load(configFile string) (*Config, error) {
	expandedPath, err := ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	l.v.SetConfigFile(expandedPath)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, &oerrors.DetailError{
			Type:     "invalid config",
			Message:  err.Error(),
			Location: expandedPath,
			Hint:     "Check the YAML syntax, or run 'modprog config vet'",
			Cause:    oerrors.ErrValidation,
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, &oerrors.DetailError{
			Type:     "invalid config",
			Message:  err.Error(),
			Location: expandedPath,
			Cause:    oerrors.ErrValidation,
		}
	}

	return &cfg, nil
}

