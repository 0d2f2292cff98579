// Command audiomark measures the throughput score of the streaming audio
// pipeline in AudioMarks.
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
	err := cli.NewScoreCommand(nil).ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "audiomark: %v\n", err)
	}
	return cli.GetExitCode(err)
}
