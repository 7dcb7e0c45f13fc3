// Command stigc compiles Stig packages to Go source.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/stigc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands print their own ExitErrors through the output formatter.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
