// Command searchgen compiles search conditions into SQL WHERE clauses or
// document queries.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/searchgen/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands print their own errors; only report what they could not.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
