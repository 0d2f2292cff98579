package conform

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/audiomark/internal/corpus"
	"github.com/roach88/audiomark/internal/harness"
	"github.com/roach88/audiomark/internal/observe"
)

// DefaultExpectedInferences is the event count the reference corpus must
// produce.
const DefaultExpectedInferences = 73

// Options configures a Validator.
type Options struct {
	// Thresholds is the tolerance policy. Nil means DefaultThresholds; a
	// non-nil policy is used as given, zeros included.
	Thresholds *Thresholds

	// Expected is the required inference count. Zero means
	// DefaultExpectedInferences.
	Expected int

	// Logger receives per-event and summary logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives instrument updates. Nil means
	// observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Validator replays a corpus through a session and compares every
// inference against the next golden row.
type Validator struct {
	thresholds Thresholds
	expected   int
	logger     *slog.Logger
	metrics    *observe.Metrics
}

// NewValidator returns a Validator for opts.
func NewValidator(opts Options) *Validator {
	v := &Validator{
		thresholds: DefaultThresholds(),
		expected:   opts.Expected,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if opts.Thresholds != nil {
		v.thresholds = *opts.Thresholds
	}
	if v.expected == 0 {
		v.expected = DefaultExpectedInferences
	}
	if v.logger == nil {
		v.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if v.metrics == nil {
		v.metrics = observe.DefaultMetrics()
	}
	return v
}

// Thresholds returns the policy in effect.
func (v *Validator) Thresholds() Thresholds {
	return v.thresholds
}

// Run feeds every frame of c through s in order. After each step that
// reports an inference, the produced vector is compared with the next
// row of g. Both cursors only move forward.
//
// A verdict failure is reported through Report.Pass and Report.Err with a
// nil error. A pipeline failure aborts the replay and returns the partial
// report with the error. ctx only carries metric recording; the replay
// itself is not cancellable.
func (v *Validator) Run(ctx context.Context, s *harness.Session, c *corpus.Corpus, g *corpus.Golden) (*Report, error) {
	r := &Report{
		Expected:   v.expected,
		Thresholds: v.thresholds,
	}
	frames := c.Cursor()
	golden := g.Cursor()

	for {
		frame, idx, ok := frames.Next()
		if !ok {
			break
		}
		inferred, err := s.Step(frame)
		r.Frames++
		if err != nil {
			v.logger.Error("pipeline step failed", "frame", idx, "error", err)
			v.metrics.RecordVerdict(ctx, false)
			return r, fmt.Errorf("frame %d: %w", idx, err)
		}
		if !inferred {
			continue
		}
		r.Inferences++
		v.score(ctx, r, idx, s, golden)
	}

	r.finish()
	v.metrics.RecordVerdict(ctx, r.Pass)
	v.logger.Info("conformance run complete",
		"frames", r.Frames,
		"inferences", r.Inferences,
		"expected", r.Expected,
		"noise", r.NoiseEvents,
		"violations", r.Violations,
		"mean_jsd", r.MeanJSD,
		"max_jsd", r.MaxJSD,
		"pass", r.Pass,
	)
	return r, nil
}

// score handles one inference event.
func (v *Validator) score(ctx context.Context, r *Report, frame int, s *harness.Session, golden *corpus.RowCursor) {
	event := r.Inferences - 1
	produced := s.Classes()
	expected, ok := golden.Next()
	if !ok {
		r.GoldenExhausted++
		v.metrics.RecordInference(ctx, observe.KindUnscored)
		v.logger.Warn("golden reference exhausted", "event", event, "frame", frame)
		return
	}

	if IsNoise(produced) && IsNoise(expected) {
		r.NoiseEvents++
		r.Samples = append(r.Samples, Sample{Event: event, Frame: frame, Noise: true})
		v.metrics.RecordInference(ctx, observe.KindNoise)
		v.logger.Debug("noise event", "event", event, "frame", frame)
		return
	}

	var jsd float64
	p, perr := Normalize(produced)
	q, qerr := Normalize(expected)
	if perr != nil || qerr != nil {
		r.Degenerate++
		jsd = 1
		v.logger.Warn("degenerate score vector", "event", event, "frame", frame,
			"produced_degenerate", perr != nil, "expected_degenerate", qerr != nil)
	} else {
		jsd = JensenShannon(p, q)
	}

	r.Scored++
	r.SumJSD += jsd
	r.MaxJSD = max(r.MaxJSD, jsd)
	violation := jsd > v.thresholds.RowJSD
	if violation {
		r.Violations++
	}
	r.Samples = append(r.Samples, Sample{Event: event, Frame: frame, JSD: jsd})

	v.metrics.RecordInference(ctx, observe.KindScored)
	v.metrics.RecordDivergence(ctx, jsd, violation)
	v.logger.Debug("inference scored", "event", event, "frame", frame, "jsd", jsd, "violation", violation)
}
