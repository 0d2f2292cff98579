package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/audiomark/internal/bench"
	"github.com/roach88/audiomark/internal/pipeline"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatBench = "bench"
)

// RootOptions holds global flags for both executables.
type RootOptions struct {
	ConfigPath string
	Database   string
	Verbose    bool
	Format     string

	// NewPipeline builds the pipeline under test (for testing).
	// If nil, the pipeline is selected by the configured name.
	NewPipeline func(name string) (pipeline.Pipeline, error)

	// Clock overrides the benchmark clock (for testing).
	Clock bench.Clock
}

// NewScoreCommand creates the root command of the audiomark executable.
// opts may be nil.
func NewScoreCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	formats := []string{FormatText, FormatJSON, FormatBench}

	cmd := &cobra.Command{
		Use:   "audiomark",
		Short: "AudioMark - streaming pipeline throughput score",
		Long: `Measure how many times faster than real time the pipeline under test
processes the reference audio stream.

The runner calibrates by doubling the iteration count until one span lasts
at least a second, scales the count to an eleven second measurement, and
reports the score in AudioMarks.

Exit codes:
  0 - Score computed
  1 - Allocation or pipeline failure
  2 - Command error (bad config, missing files, database)

Examples:
  audiomark
  audiomark --config audiomark.yaml --db history.db
  audiomark --format bench | benchstat -
  audiomark history --db history.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(opts.Format, formats)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(opts, cmd)
		},
	}
	addRootFlags(cmd, opts, formats)
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// NewConformCommand creates the root command of the kwsconform executable.
// rootOpts may be nil.
func NewConformCommand(rootOpts *RootOptions) *cobra.Command {
	if rootOpts == nil {
		rootOpts = &RootOptions{}
	}
	opts := &ConformOptions{RootOptions: rootOpts}
	formats := []string{FormatText, FormatJSON}

	cmd := &cobra.Command{
		Use:   "kwsconform",
		Short: "KWS streaming conformance check",
		Long: `Replay the audio corpus through the keyword-spotting pipeline and compare
every inference against the golden table with Jensen-Shannon divergence.

Exit codes:
  0 - Conformance passed
  1 - Conformance failed, or the pipeline failed
  2 - Command error (bad config, missing files, database)

Examples:
  kwsconform --golden expected.bin
  kwsconform --config audiomark.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(opts.Format, formats)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConform(opts, cmd)
		},
	}
	addRootFlags(cmd, opts.RootOptions, formats)
	cmd.Flags().StringVar(&opts.Audio, "audio", "", "audio corpus (.wav or raw PCM16); overrides corpus.audio")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden table (raw int8 rows); overrides corpus.golden")

	return cmd
}

func addRootFlags(cmd *cobra.Command, opts *RootOptions, formats []string) {
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite run history; overrides store.path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, fmt.Sprintf("output format %v", formats))
}

func checkFormat(format string, formats []string) error {
	if !slices.Contains(formats, format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", format, formats))
	}
	return nil
}
