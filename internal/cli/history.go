package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/audiomark/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Kind  string
	Limit int
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Runs  []store.Summary `json:"runs"`
	Total int             `json:"total"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded score and conformance runs",
		Long: `List runs recorded in the run history database, newest first.

Examples:
  audiomark history --db history.db
  audiomark history --db history.db --kind conform --limit 5
  audiomark history --config audiomark.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by run kind (score|conform)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := checkFormat(opts.Format, []string{FormatText, FormatJSON}); err != nil {
		return err
	}
	switch opts.Kind {
	case "", store.KindScore, store.KindConform:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be %s or %s", opts.Kind, store.KindScore, store.KindConform))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return NewExitError(ExitCommandError, "no run history: set store.path or --db")
	}
	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, opts.Kind, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == FormatJSON {
		f := &OutputFormatter{Format: FormatJSON, Writer: cmd.OutOrStdout()}
		return f.Success(HistoryResult{Runs: runs, Total: len(runs)})
	}
	writeHistoryText(cmd.OutOrStdout(), runs)
	return nil
}

func writeHistoryText(w io.Writer, runs []store.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTARTED\tPIPELINE\tRESULT\tSUMMARY")
	for _, r := range runs {
		result := "pass"
		if !r.Pass {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.StartedAt.Format("2006-01-02 15:04:05"), r.Pipeline, result, summarize(r))
	}
	tw.Flush()
}

func summarize(r store.Summary) string {
	if r.Error != "" {
		return r.Error
	}
	switch r.Kind {
	case store.KindScore:
		return fmt.Sprintf("%.3f AudioMarks (%d iterations)", r.Score, r.Iterations)
	case store.KindConform:
		return fmt.Sprintf("%d/%d inferences, %d violations, max JSD %.5f",
			r.Inferences, r.Expected, r.Violations, r.MaxJSD)
	}
	return ""
}
