package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/roach88/ecmc/internal/cli.Version=...".
var Version = "dev"

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "version",
		Short:        "Print the version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": Version,
				"go":      runtime.Version(),
			}
			if formatter := newFormatter(rootOpts, cmd); formatter.isJSON() {
				return formatter.Success(info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ecmc %s (%s)\n", Version, info["go"])
			return nil
		},
	}
}
