package testutil

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/roach88/audiomark/internal/observe"
)

// NewMetrics returns an observe.Metrics backed by a ManualReader for
// programmatic inspection.
func NewMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// Collect gathers all metric data from the reader.
func Collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// FindMetric searches for a metric by name across all scope metrics.
func FindMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// CounterValue returns the value of the int64 sum data point whose
// attribute key equals value, or the first data point when key is empty.
// The second result is false if no such point exists.
func CounterValue(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	met := FindMetric(rm, name)
	if met == nil {
		return 0, false
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value, true
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value, true
			}
		}
	}
	return 0, false
}

// HistogramCount returns the total sample count of a float64 histogram.
func HistogramCount(rm metricdata.ResourceMetrics, name string) uint64 {
	met := FindMetric(rm, name)
	if met == nil {
		return 0
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}
