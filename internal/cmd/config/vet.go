package config

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opmodel/modprog/internal/config"
	oerrors "github.com/opmodel/modprog/internal/errors"
	"github.com/opmodel/modprog/internal/output"
)

// NewConfigVetCmd creates the config vet command.
func NewConfigVetCmd(cfg *config.GlobalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "vet",
		Short: "Validate the modprog configuration file",
		Long: `Validate modprog.yaml against the configuration schema.

Unknown keys and invalid values are reported with their path.
Use --config to specify a different location.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runVet(c, cfg)
		},
	}
}

func runVet(c *cobra.Command, cfg *config.GlobalConfig) error {
	path, err := configPath(cfg)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	exists, err := config.FileExists(path)
	if err != nil {
		return fmt.Errorf("checking config file: %w", err)
	}
	if !exists {
		return oerrors.NewExitError(
			fmt.Errorf("config file not found: %s", path),
			oerrors.ExitNotFound,
		)
	}

	validator, err := config.NewValidator()
	if err != nil {
		return fmt.Errorf("creating validator: %w", err)
	}

	if err := validator.ValidateFile(path); err != nil {
		var validationErrs config.ValidationErrors
		if errors.As(err, &validationErrs) {
			w := c.ErrOrStderr()
			fmt.Fprintln(w, "Error: config validation failed")
			fmt.Fprintf(w, "  File: %s\n\n", path)
			for _, e := range validationErrs {
				fmt.Fprintf(w, "  %s\n", e.Error())
			}
			return &oerrors.ExitError{Err: err, Code: oerrors.ExitValidationError, Printed: true}
		}
		return fmt.Errorf("validating config: %w", err)
	}

	fmt.Fprintln(c.OutOrStdout(), output.FormatCheckmark("Config file is valid: "+path))
	return nil
}
