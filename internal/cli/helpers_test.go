package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audiomark/internal/corpus"
	"github.com/roach88/audiomark/internal/harness"
	"github.com/roach88/audiomark/internal/pipeline"
	"github.com/roach88/audiomark/internal/pipeline/kws"
	"github.com/roach88/audiomark/internal/pipeline/mock"
	"github.com/roach88/audiomark/internal/testutil"
)

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes data under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// steppedPipeline returns options whose pipeline is a mock that advances
// clock by perStep microseconds on every step.
func steppedPipeline(perStep uint64) *RootOptions {
	clock := testutil.NewDeterministicClock()
	return &RootOptions{
		Clock: clock,
		NewPipeline: func(string) (pipeline.Pipeline, error) {
			return &mock.Pipeline{
				Size:   64,
				OnStep: func(int) { clock.Advance(perStep) },
			}, nil
		},
	}
}

// referenceGolden records the reference pipeline's output over the
// built-in corpus and returns it as raw golden rows.
func referenceGolden(t *testing.T) []pipeline.Classes {
	t.Helper()
	s, err := harness.Open(kws.New(), harness.Options{})
	require.NoError(t, err)
	defer s.Close()

	var rows []pipeline.Classes
	cur := corpus.Reference().Cursor()
	for {
		frame, _, ok := cur.Next()
		if !ok {
			return rows
		}
		inferred, err := s.Step(frame)
		require.NoError(t, err)
		if inferred {
			rows = append(rows, s.Classes())
		}
	}
}

func goldenFile(t *testing.T, rows []pipeline.Classes) string {
	t.Helper()
	return writeFile(t, "expected.bin", corpus.NewGolden(rows).Encode())
}
