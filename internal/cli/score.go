package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/perf/benchfmt"

	"github.com/roach88/audiomark/internal/bench"
	"github.com/roach88/audiomark/internal/harness"
	"github.com/roach88/audiomark/internal/store"
)

// ScoreResult is the JSON payload of a score run.
type ScoreResult struct {
	RunID           string            `json:"run_id,omitempty"`
	Pipeline        string            `json:"pipeline"`
	CorpusDigest    string            `json:"corpus_digest"`
	Frames          int               `json:"frames"`
	Calibration     bench.Measurement `json:"calibration"`
	Measurement     bench.Measurement `json:"measurement"`
	RuntimeSec      float64           `json:"runtime_s"`
	Score           float64           `json:"score"`
	InferenceEvents uint64            `json:"inference_events"`
}

func runScore(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := loadEnvironment(opts, cmd.ErrOrStderr(), "")
	if err != nil {
		return err
	}
	logger := env.logger

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

	put, err := newPipeline(opts, env.cfg.Pipeline.Name)
	if err != nil {
		return err
	}

	run := store.NewRun(store.KindScore, env.cfg.Pipeline.Name, time.Now())
	run.CorpusDigest = env.corpusDigest
	run.ConfigDigest = env.configDigest

	logger.Info("initializing", "pipeline", env.cfg.Pipeline.Name, "frames", env.corpus.Len())
	session, err := harness.Open(put, harness.Options{
		MaxArenaBytes: env.cfg.Pipeline.ArenaMaxBytes,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return finishScore(ctx, cmd, opts, st, run, &bench.Result{}, nil, env, err)
	}
	defer session.Close()

	replay := harness.NewReplay(session, env.corpus)
	benchOpts := env.cfg.BenchOptions()
	benchOpts.Clock = opts.Clock
	benchOpts.Logger = logger
	runner := bench.NewRunner(bench.WorkloadFunc(replay.Run), benchOpts)

	res, runErr := runner.Run(ctx)
	if runErr != nil {
		logger.Error("benchmark failed", "error", runErr)
	}
	return finishScore(ctx, cmd, opts, st, run, res, replay, env, runErr)
}

// finishScore records the run and writes the output. runErr, if set, is
// returned as an ExitFailure after the partial result is written.
func finishScore(ctx context.Context, cmd *cobra.Command, opts *RootOptions, st *store.Store, run store.Run, res *bench.Result, replay *harness.Replay, env *environment, runErr error) error {
	out := ScoreResult{
		Pipeline:     run.Pipeline,
		CorpusDigest: env.corpusDigest,
		Frames:       env.corpus.Len(),
		Calibration:  res.Calibration,
		Measurement:  res.Measurement,
		RuntimeSec:   res.Measurement.Seconds(),
		Score:        res.Score,
	}
	if replay != nil {
		out.InferenceEvents = replay.Events()
	}

	if st != nil {
		if err := st.WriteScoreRun(ctx, run, res, runErr); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		out.RunID = run.ID
		env.logger.Debug("run recorded", "id", run.ID)
	}

	w := cmd.OutOrStdout()
	if runErr != nil {
		code := string(harness.CodeOf(runErr))
		if code == "" {
			code = string(harness.ErrCodePipelineRun)
		}
		if opts.Format == FormatJSON {
			f := &OutputFormatter{Format: FormatJSON, Writer: w}
			if err := f.Failure(out, code, runErr.Error(), nil); err != nil {
				return err
			}
		}
		return WrapExitError(ExitFailure, "benchmark failed", runErr)
	}

	switch opts.Format {
	case FormatJSON:
		return (&OutputFormatter{Format: FormatJSON, Writer: w}).Success(out)
	case FormatBench:
		return writeBenchFormat(w, out)
	default:
		writeScoreText(w, out)
		return nil
	}
}

func writeScoreText(w io.Writer, out ScoreResult) {
	fmt.Fprintf(w, "Total runtime    : %.3f seconds\n", out.RuntimeSec)
	fmt.Fprintf(w, "Total iterations : %d iterations\n", out.Measurement.Iterations)
	fmt.Fprintf(w, "Score            : %f AudioMarks\n", out.Score)
}

// writeBenchFormat writes the measurement as one Go benchmark result, so
// runs can be compared with benchstat.
func writeBenchFormat(w io.Writer, out ScoreResult) error {
	m := out.Measurement
	res := &benchfmt.Result{
		Config: []benchfmt.Config{
			{Key: "pipeline", Value: []byte(out.Pipeline), File: true},
			{Key: "corpus", Value: []byte(out.CorpusDigest), File: true},
		},
		Name:  benchfmt.Name("AudioMark"),
		Iters: int(m.Iterations),
		Values: []benchfmt.Value{
			{Value: float64(m.ElapsedMicros) * 1e3 / float64(m.Iterations), Unit: "ns/op"},
			{Value: out.Score, Unit: "audiomarks"},
		},
	}
	return benchfmt.NewWriter(w).Write(res)
}
