package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/audiomark/internal/conform"
	"github.com/roach88/audiomark/internal/harness"
	"github.com/roach88/audiomark/internal/store"
)

// ConformOptions holds flags for the kwsconform command.
type ConformOptions struct {
	*RootOptions
	Audio  string
	Golden string
}

// ConformResult is the JSON payload of a conformance run.
type ConformResult struct {
	RunID        string          `json:"run_id,omitempty"`
	Pipeline     string          `json:"pipeline"`
	CorpusDigest string          `json:"corpus_digest"`
	Report       *conform.Report `json:"report"`
}

func runConform(opts *ConformOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := loadEnvironment(opts.RootOptions, cmd.ErrOrStderr(), opts.Audio)
	if err != nil {
		return err
	}
	logger := env.logger

	goldenPath := env.cfg.Corpus.Golden
	if opts.Golden != "" {
		goldenPath = opts.Golden
	}
	golden, err := loadGolden(goldenPath)
	if err != nil {
		return err
	}

	st, err := openStore(env.cfg.Store.Path)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	put, err := newPipeline(opts.RootOptions, env.cfg.Pipeline.Name)
	if err != nil {
		return err
	}

	run := store.NewRun(store.KindConform, env.cfg.Pipeline.Name, time.Now())
	run.CorpusDigest = env.corpusDigest
	run.ConfigDigest = env.configDigest

	validatorOpts := env.cfg.ConformOptions()
	validatorOpts.Logger = logger
	validator := conform.NewValidator(validatorOpts)

	var (
		rep    *conform.Report
		runErr error
	)
	session, err := harness.Open(put, harness.Options{
		MaxArenaBytes: env.cfg.Pipeline.ArenaMaxBytes,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		rep = &conform.Report{Expected: validatorOpts.Expected, Thresholds: validator.Thresholds()}
		runErr = err
	} else {
		defer session.Close()
		rep, runErr = validator.Run(ctx, session, env.corpus, golden)
	}

	out := ConformResult{
		Pipeline:     run.Pipeline,
		CorpusDigest: env.corpusDigest,
		Report:       rep,
	}
	if st != nil {
		if err := st.WriteConformanceRun(ctx, run, rep, runErr); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		out.RunID = run.ID
		logger.Debug("run recorded", "id", run.ID)
	}

	return writeConformOutput(cmd.OutOrStdout(), opts.Format, out, runErr)
}

// writeConformOutput prints the report and maps the outcome to an exit
// error. A pipeline failure takes precedence over the verdict.
func writeConformOutput(w io.Writer, format string, out ConformResult, runErr error) error {
	rep := out.Report
	failure := runErr
	if failure == nil {
		failure = rep.Err()
	}

	if format == FormatJSON {
		f := &OutputFormatter{Format: FormatJSON, Writer: w}
		if failure == nil {
			return f.Success(out)
		}
		var details any
		if runErr == nil {
			details = rep.Failures
		}
		if err := f.Failure(out, string(failureCode(failure)), failure.Error(), details); err != nil {
			return err
		}
	} else {
		writeConformText(w, rep, runErr)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "KWS run failed", runErr)
	}
	if failure != nil {
		return WrapExitError(ExitFailure, "KWS test failed", failure)
	}
	return nil
}

func failureCode(err error) harness.ErrCode {
	if code := harness.CodeOf(err); code != "" {
		return code
	}
	return harness.ErrCodePipelineRun
}

func writeConformText(w io.Writer, rep *conform.Report, runErr error) {
	fmt.Fprintf(w, "Frames           : %d\n", rep.Frames)
	fmt.Fprintf(w, "Inferences       : %d (expected %d)\n", rep.Inferences, rep.Expected)
	fmt.Fprintf(w, "Noise events     : %d\n", rep.NoiseEvents)
	fmt.Fprintf(w, "Scored events    : %d\n", rep.Scored)
	fmt.Fprintf(w, "JSD violations   : %d of %d rows (%.2f%%), max=%.5f, mean=%.5f\n",
		rep.Violations, rep.Inferences, 100*rep.ViolationRatio, rep.MaxJSD, rep.MeanJSD)
	if rep.Scored > 0 {
		fmt.Fprintf(w, "Active violations: %.2f%% of scored rows\n", 100*rep.ActiveViolationRatio)
	}

	if runErr != nil {
		fmt.Fprintf(w, "Error [%s]: %v\n", failureCode(runErr), runErr)
		fmt.Fprintln(w, "KWS test failed")
		return
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "Error [%s]: %s\n", f.Code, f.Message)
	}
	if rep.Pass {
		fmt.Fprintln(w, "KWS test passed")
	} else {
		fmt.Fprintln(w, "KWS test failed")
	}
}
