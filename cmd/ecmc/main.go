// Command ecmc runs event-chain Monte Carlo simulations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ecmc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
