package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/ecmc/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Particles int      `json:"particles,omitempty"`
	Factors   int      `json:"factors,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration without running it",
		Long: `Validate a YAML or TOML run configuration.

Checks the file against the configuration schema and the cross-field
rules, and reports every violation at once.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	formatter.VerboseLog("loaded %s", path)

	if err := cfg.Validate(); err != nil {
		result := ValidationResult{Valid: false, Errors: violations(err)}
		if formatter.isJSON() {
			_ = formatter.Error(ErrCodeConfig, "invalid configuration", result)
		} else {
			formatter.Printf("✗ %s: %d violation(s)\n", path, len(result.Errors))
			for _, msg := range result.Errors {
				formatter.Printf("  %s\n", msg)
			}
		}
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	n := cfg.ParticleCount()
	result := ValidationResult{Valid: true, Particles: n, Factors: n * (n - 1) / 2}
	if formatter.isJSON() {
		return formatter.Success(result)
	}
	formatter.Printf("✓ %s is valid (%d particles, %d pair factors)\n", path, result.Particles, result.Factors)
	return nil
}

// violations flattens joined errors into one message each.
func violations(err error) []string {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, violations(e)...)
	}
	return out
}
