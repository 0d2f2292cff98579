// Package bench implements the adaptive AudioMark throughput runner.
//
// The runner times a workload in two phases. Calibration doubles the
// iteration count, starting from 2, until one timed span reaches
// CalibrationMicros. The count is then scaled so the measurement phase
// lasts about TargetMicros, with a floor of MinIterations. The score is
// the measured rate relative to real time:
//
//	score = iterations / seconds * 1000 / RealtimeSeconds
//
// where one iteration processes RealtimeSeconds of audio.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/audiomark/internal/observe"
)

// ErrIterationOverflow is returned when calibration would double the
// iteration count past Options.MaxCalibrationIterations, which happens
// when the clock does not advance.
var ErrIterationOverflow = errors.New("calibration iteration count overflow")

// ErrNoElapsedTime is returned when the measurement span reads as zero.
var ErrNoElapsedTime = errors.New("measurement span is zero")

// Workload is one timed unit of work.
type Workload interface {
	Run() error
}

// WorkloadFunc adapts a function to Workload.
type WorkloadFunc func() error

// Run calls f.
func (f WorkloadFunc) Run() error {
	return f()
}

// Measurement is an iteration count and the span it took.
type Measurement struct {
	Iterations    uint32 `json:"iterations"`
	ElapsedMicros uint64 `json:"elapsed_us"`
}

// Seconds returns the span in seconds.
func (m Measurement) Seconds() float64 {
	return float64(m.ElapsedMicros) / 1e6
}

// Result is the outcome of a full run.
type Result struct {
	Calibration Measurement `json:"calibration"`
	Measurement Measurement `json:"measurement"`
	Score       float64     `json:"score"`
}

// Options configures a Runner. Zero fields take the AudioMark defaults.
type Options struct {
	// CalibrationMicros is the span calibration must reach. Default 1e6.
	CalibrationMicros uint64

	// TargetMicros is the intended measurement span. Default 11e6.
	TargetMicros uint64

	// MinIterations floors the measurement count. Default 10.
	MinIterations uint32

	// MaxCalibrationIterations caps the doubled count. Default
	// math.MaxUint32.
	MaxCalibrationIterations uint32

	// RealtimeSeconds is the audio duration one iteration covers.
	// Default 1.5.
	RealtimeSeconds float64

	// Clock is the time source. Default NewSystemClock().
	Clock Clock

	// Logger receives phase logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives instrument updates. Nil means
	// observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Defaults.
const (
	DefaultCalibrationMicros = 1_000_000
	DefaultTargetMicros      = 11_000_000
	DefaultMinIterations     = 10
	DefaultRealtimeSeconds   = 1.5
)

// Runner times a workload. A Runner is not safe for concurrent use.
type Runner struct {
	work    Workload
	opts    Options
	logger  *slog.Logger
	metrics *observe.Metrics
}

// NewRunner returns a Runner for work.
func NewRunner(work Workload, opts Options) *Runner {
	if opts.CalibrationMicros == 0 {
		opts.CalibrationMicros = DefaultCalibrationMicros
	}
	if opts.TargetMicros == 0 {
		opts.TargetMicros = DefaultTargetMicros
	}
	if opts.MinIterations == 0 {
		opts.MinIterations = DefaultMinIterations
	}
	if opts.MaxCalibrationIterations == 0 {
		opts.MaxCalibrationIterations = math.MaxUint32
	}
	if opts.RealtimeSeconds == 0 {
		opts.RealtimeSeconds = DefaultRealtimeSeconds
	}
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	r := &Runner{work: work, opts: opts, logger: opts.Logger, metrics: opts.Metrics}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Calibrate doubles the iteration count until one timed span reaches
// CalibrationMicros. The first failing iteration aborts calibration.
func (r *Runner) Calibrate(ctx context.Context) (Measurement, error) {
	r.logger.Info("computing run speed")
	iterations := uint32(1)
	for {
		if iterations > r.opts.MaxCalibrationIterations/2 {
			return Measurement{}, fmt.Errorf("after %d iterations: %w", iterations, ErrIterationOverflow)
		}
		iterations *= 2
		m, err := r.time(iterations)
		if err != nil {
			return m, fmt.Errorf("calibration: %w", err)
		}
		r.logger.Debug("calibration span", "iterations", iterations, "elapsed_us", m.ElapsedMicros)
		if m.ElapsedMicros >= r.opts.CalibrationMicros {
			r.metrics.RecordPhase(ctx, observe.PhaseCalibration, m.Iterations, m.ElapsedMicros)
			return m, nil
		}
	}
}

// Scale returns the measurement iteration count for a calibration
// result: floor(iterations * TargetMicros / elapsed), at least
// MinIterations.
func (r *Runner) Scale(cal Measurement) uint32 {
	if cal.ElapsedMicros == 0 {
		return r.opts.MinIterations
	}
	scale := float64(r.opts.TargetMicros) / float64(cal.ElapsedMicros)
	n := math.Floor(float64(cal.Iterations) * scale)
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	return max(uint32(n), r.opts.MinIterations)
}

// Measure times exactly iterations sequential workload runs in one span.
func (r *Runner) Measure(ctx context.Context, iterations uint32) (Measurement, error) {
	r.logger.Info("measuring", "iterations", iterations)
	m, err := r.time(iterations)
	if err != nil {
		return m, fmt.Errorf("measurement: %w", err)
	}
	r.metrics.RecordPhase(ctx, observe.PhaseMeasurement, m.Iterations, m.ElapsedMicros)
	return m, nil
}

// ComputeScore converts a measurement to AudioMarks.
func (r *Runner) ComputeScore(m Measurement) float64 {
	return ComputeScore(m, r.opts.RealtimeSeconds)
}

// ComputeScore converts a measurement to AudioMarks given the audio
// duration one iteration covers.
func ComputeScore(m Measurement, realtimeSeconds float64) float64 {
	return float64(m.Iterations) / m.Seconds() * 1000 / realtimeSeconds
}

// Run calibrates, scales, measures and scores. Any failure is terminal.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res, err := r.run(ctx)
	if err != nil {
		r.metrics.RecordBenchmark(ctx, 0, err)
		return res, err
	}
	r.metrics.RecordBenchmark(ctx, res.Score, nil)
	r.logger.Info("benchmark complete",
		"runtime_s", res.Measurement.Seconds(),
		"iterations", res.Measurement.Iterations,
		"score", res.Score,
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context) (*Result, error) {
	res := &Result{}
	cal, err := r.Calibrate(ctx)
	if err != nil {
		return res, err
	}
	res.Calibration = cal

	m, err := r.Measure(ctx, r.Scale(cal))
	res.Measurement = m
	if err != nil {
		return res, err
	}
	if m.ElapsedMicros == 0 {
		return res, ErrNoElapsedTime
	}
	res.Score = r.ComputeScore(m)
	return res, nil
}

// time runs the workload iterations times between two clock reads. On
// failure the returned measurement holds the completed iterations.
func (r *Runner) time(iterations uint32) (Measurement, error) {
	t0 := r.opts.Clock.Microseconds()
	for i := uint32(0); i < iterations; i++ {
		if err := r.work.Run(); err != nil {
			t1 := r.opts.Clock.Microseconds()
			return Measurement{Iterations: i, ElapsedMicros: t1 - t0}, fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	t1 := r.opts.Clock.Microseconds()
	return Measurement{Iterations: iterations, ElapsedMicros: t1 - t0}, nil
}
