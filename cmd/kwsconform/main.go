// Command kwsconform checks the keyword-spotting pipeline against a golden
// table and prints a pass/fail report.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/audiomark/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cli.NewConformCommand(nil).ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "kwsconform: %v\n", err)
	}
	return cli.GetExitCode(err)
}
