package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string
}

const (
	formatText = "text"
	formatJSON = "json"
)

// ValidFormats lists the values of --format.
var ValidFormats = []string{formatText, formatJSON}

// subcommands of ecmc, in help order.
var subcommands = []func(*RootOptions) *cobra.Command{
	NewRunCommand,
	NewValidateCommand,
	NewExampleConfigCommand,
	NewTestCommand,
	NewRunsCommand,
	NewTraceCommand,
	NewVersionCommand,
}

// NewRootCommand creates the ecmc command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ecmc",
		Short: "ecmc - event-chain Monte Carlo",
		Long: `An event-chain Monte Carlo kernel for hard-sphere and soft pair
interactions in periodic boxes.

Runs are described by a YAML or TOML configuration (see example-config)
and may be logged to SQLite for later inspection with runs and trace.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", formatText, "output format (json|text)")

	for _, newCmd := range subcommands {
		cmd.AddCommand(newCmd(opts))
	}
	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
