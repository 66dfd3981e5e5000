package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/ecmc/internal/config"
)

// NewExampleConfigCommand creates the example-config command.
func NewExampleConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "example-config",
		Short: "Print a complete example configuration",
		Long: `Print the default configuration with every derived field filled in.

The output is a valid configuration and a starting point for new runs:
  ecmc example-config > run.yaml
  ecmc example-config --toml > run.toml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := config.FormatYAML
			if asTOML {
				format = config.FormatTOML
			}
			data, err := config.Marshal(config.Example(), format)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to encode example config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&asTOML, "toml", false, "print TOML instead of YAML")

	return cmd
}
