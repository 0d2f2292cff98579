// Package observe provides the OpenTelemetry metric instruments recorded by
// the benchmark runner and the conformance validator.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is bound to
// the global meter provider, which is a no-op unless the process installs
// one. Tests should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/roach88/audiomark"

// Attribute values.
const (
	PhaseCalibration = "calibration"
	PhaseMeasurement = "measurement"

	KindScored   = "scored"
	KindNoise    = "noise"
	KindUnscored = "unscored"

	StatusOK    = "ok"
	StatusError = "error"

	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Metrics holds the metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// --- Benchmark ---

	// BenchmarkRuns counts score runs. Attribute: status.
	BenchmarkRuns metric.Int64Counter

	// Iterations counts workload invocations. Attribute: phase.
	Iterations metric.Int64Counter

	// PhaseDuration tracks the measured span of each timing phase.
	// Attribute: phase.
	PhaseDuration metric.Float64Histogram

	// Score holds the last computed score.
	Score metric.Float64Gauge

	// --- Conformance ---

	// Inferences counts inference events. Attribute: kind.
	Inferences metric.Int64Counter

	// Divergence tracks per-event Jensen-Shannon divergence.
	Divergence metric.Float64Histogram

	// Violations counts events whose divergence exceeded the row threshold.
	Violations metric.Int64Counter

	// ConformanceRuns counts validator runs. Attribute: verdict.
	ConformanceRuns metric.Int64Counter
}

// divergenceBuckets brackets the row, mean and max thresholds.
var divergenceBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.015, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

var durationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 5, 11, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BenchmarkRuns, err = m.Int64Counter("audiomark.benchmark.runs",
		metric.WithDescription("Total score runs by status."),
	); err != nil {
		return nil, err
	}
	if met.Iterations, err = m.Int64Counter("audiomark.benchmark.iterations",
		metric.WithDescription("Workload iterations by timing phase."),
	); err != nil {
		return nil, err
	}
	if met.PhaseDuration, err = m.Float64Histogram("audiomark.benchmark.phase.duration",
		metric.WithDescription("Measured span of a timing phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Score, err = m.Float64Gauge("audiomark.benchmark.score",
		metric.WithDescription("Last computed AudioMark score."),
	); err != nil {
		return nil, err
	}

	if met.Inferences, err = m.Int64Counter("audiomark.kws.inferences",
		metric.WithDescription("Inference events by kind."),
	); err != nil {
		return nil, err
	}
	if met.Divergence, err = m.Float64Histogram("audiomark.kws.divergence",
		metric.WithDescription("Jensen-Shannon divergence between produced and expected scores."),
		metric.WithExplicitBucketBoundaries(divergenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Violations, err = m.Int64Counter("audiomark.kws.violations",
		metric.WithDescription("Inference events above the per-row divergence threshold."),
	); err != nil {
		return nil, err
	}
	if met.ConformanceRuns, err = m.Int64Counter("audiomark.kws.runs",
		metric.WithDescription("Conformance runs by verdict."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPhase records one timing phase.
func (m *Metrics) RecordPhase(ctx context.Context, phase string, iterations uint32, elapsedMicros uint64) {
	attrs := metric.WithAttributes(attribute.String("phase", phase))
	m.Iterations.Add(ctx, int64(iterations), attrs)
	m.PhaseDuration.Record(ctx, float64(elapsedMicros)/1e6, attrs)
}

// RecordBenchmark records the outcome of a score run. score is ignored
// when err is non-nil.
func (m *Metrics) RecordBenchmark(ctx context.Context, score float64, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.BenchmarkRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if err == nil {
		m.Score.Record(ctx, score)
	}
}

// RecordInference records one inference event of the given kind.
func (m *Metrics) RecordInference(ctx context.Context, kind string) {
	m.Inferences.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDivergence records a scored event's divergence.
func (m *Metrics) RecordDivergence(ctx context.Context, jsd float64, violation bool) {
	m.Divergence.Record(ctx, jsd)
	if violation {
		m.Violations.Add(ctx, 1)
	}
}

// RecordVerdict records the outcome of a conformance run.
func (m *Metrics) RecordVerdict(ctx context.Context, pass bool) {
	verdict := VerdictFail
	if pass {
		verdict = VerdictPass
	}
	m.ConformanceRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
}
