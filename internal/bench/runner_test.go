package bench

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audiomark/internal/testutil"
)

// stepWorkload advances clock by perIteration on every run and fails on
// the failAt-th call (1-based) when failAt > 0.
type stepWorkload struct {
	clock        *testutil.DeterministicClock
	perIteration uint64
	calls        int
	failAt       int
}

var errWorkload = errors.New("pipeline step failed")

func (w *stepWorkload) Run() error {
	w.calls++
	if w.failAt > 0 && w.calls == w.failAt {
		return errWorkload
	}
	w.clock.Advance(w.perIteration)
	return nil
}

func newRunner(t *testing.T, w *stepWorkload, opts Options) *Runner {
	t.Helper()
	opts.Clock = w.clock
	if opts.Metrics == nil {
		opts.Metrics, _ = testutil.NewMetrics(t)
	}
	return NewRunner(w, opts)
}

func TestRunner_Deterministic(t *testing.T) {
	w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 1000}
	r := newRunner(t, w, Options{})

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Measurement{Iterations: 1024, ElapsedMicros: 1_024_000}, res.Calibration)
	assert.Equal(t, Measurement{Iterations: 11000, ElapsedMicros: 11_000_000}, res.Measurement)
	assert.InDelta(t, 666666.6667, res.Score, 1e-3)

	// 2+4+...+1024 calibration calls, then the measurement
	assert.Equal(t, 2046+11000, w.calls)
}

func TestRunner_Idempotent(t *testing.T) {
	var scores []float64
	for i := 0; i < 3; i++ {
		w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 750}
		res, err := newRunner(t, w, Options{}).Run(context.Background())
		require.NoError(t, err)
		scores = append(scores, res.Score)
	}
	assert.Equal(t, scores[0], scores[1])
	assert.Equal(t, scores[1], scores[2])
}

func TestComputeScore(t *testing.T) {
	got := ComputeScore(Measurement{Iterations: 20000, ElapsedMicros: 11_000_000}, DefaultRealtimeSeconds)
	assert.InDelta(t, 1_212_121.2, got, 0.1)

	r := NewRunner(WorkloadFunc(func() error { return nil }), Options{RealtimeSeconds: 3})
	assert.InDelta(t, 1000.0, r.ComputeScore(Measurement{Iterations: 3, ElapsedMicros: 1_000_000}), 1e-9)
}

func TestScale(t *testing.T) {
	r := NewRunner(WorkloadFunc(func() error { return nil }), Options{})

	tests := []struct {
		name string
		cal  Measurement
		want uint32
	}{
		{"exact", Measurement{Iterations: 1024, ElapsedMicros: 1_024_000}, 11000},
		{"floors", Measurement{Iterations: 3, ElapsedMicros: 1_000_000}, 33},
		{"slow pipeline clamps", Measurement{Iterations: 2, ElapsedMicros: 5_000_000}, 10},
		{"zero span clamps", Measurement{Iterations: 2}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Scale(tt.cal))
		})
	}
}

func TestRunner_MinIterations(t *testing.T) {
	// one iteration takes 3 s, so calibration stops at 2 iterations and
	// scaling yields 3, clamped up to 10
	w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 3_000_000}
	res, err := newRunner(t, w, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint32(2), res.Calibration.Iterations)
	assert.Equal(t, uint32(10), res.Measurement.Iterations)
	assert.Equal(t, uint64(30_000_000), res.Measurement.ElapsedMicros)
}

func TestRunner_CalibrationFailure(t *testing.T) {
	w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 1000, failAt: 5}
	res, err := newRunner(t, w, Options{}).Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errWorkload)
	assert.Contains(t, err.Error(), "calibration")
	assert.Zero(t, res.Measurement.Iterations, "measurement never starts")
	assert.Equal(t, 5, w.calls, "no retries")
}

func TestRunner_MeasurementFailure(t *testing.T) {
	w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 1000, failAt: 2046 + 100}
	res, err := newRunner(t, w, Options{}).Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errWorkload)
	assert.Contains(t, err.Error(), "measurement")
	assert.Equal(t, uint32(1024), res.Calibration.Iterations)
	assert.Equal(t, uint32(99), res.Measurement.Iterations)
	assert.Zero(t, res.Score)
}

func TestRunner_ClockNeverAdvances(t *testing.T) {
	w := &stepWorkload{clock: testutil.NewDeterministicClock()}
	_, err := newRunner(t, w, Options{MaxCalibrationIterations: 64}).Calibrate(context.Background())
	assert.ErrorIs(t, err, ErrIterationOverflow)
	assert.Equal(t, 2+4+8+16+32+64, w.calls)
}

func TestRunner_Metrics(t *testing.T) {
	w := &stepWorkload{clock: testutil.NewDeterministicClock(), perIteration: 1000}
	m, reader := testutil.NewMetrics(t)
	_, err := NewRunner(w, Options{Clock: w.clock, Metrics: m}).Run(context.Background())
	require.NoError(t, err)

	rm := testutil.Collect(t, reader)
	cal, ok := testutil.CounterValue(rm, "audiomark.benchmark.iterations", "phase", "calibration")
	require.True(t, ok)
	assert.Equal(t, int64(1024), cal)
	meas, ok := testutil.CounterValue(rm, "audiomark.benchmark.iterations", "phase", "measurement")
	require.True(t, ok)
	assert.Equal(t, int64(11000), meas)
	runs, ok := testutil.CounterValue(rm, "audiomark.benchmark.runs", "status", "ok")
	require.True(t, ok)
	assert.Equal(t, int64(1), runs)
}

func TestSystemClock_Monotonic(t *testing.T) {
	c := NewSystemClock()
	a := c.Microseconds()
	b := c.Microseconds()
	assert.GreaterOrEqual(t, b, a)
}
