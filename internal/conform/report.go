package conform

import (
	"errors"
	"fmt"

	"github.com/roach88/audiomark/internal/harness"
)

// Threshold conditions reported with ErrCodeDivergenceExceeded.
const (
	ConditionMaxJSD         = "max_jsd"
	ConditionMeanJSD        = "mean_jsd"
	ConditionViolationRatio = "violation_ratio"
)

// Thresholds is the divergence tolerance policy.
type Thresholds struct {
	// RowJSD is the per-event divergence above which an event counts as
	// a violation.
	RowJSD float64 `json:"row_jsd" yaml:"row_jsd"`

	// MeanJSD bounds the mean divergence over all events.
	MeanJSD float64 `json:"mean_jsd" yaml:"mean_jsd"`

	// MaxJSD bounds the largest single-event divergence.
	MaxJSD float64 `json:"max_jsd" yaml:"max_jsd"`

	// MaxViolationRatio bounds violations / events.
	MaxViolationRatio float64 `json:"max_violation_ratio" yaml:"max_violation_ratio"`
}

// DefaultThresholds returns the keyword-spotting tolerance policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RowJSD:            0.015,
		MeanJSD:           0.0025,
		MaxJSD:            0.05,
		MaxViolationRatio: 0.01,
	}
}

// Sample is the record of one inference event.
type Sample struct {
	Event int     `json:"event"`
	Frame int     `json:"frame"`
	Noise bool    `json:"noise"`
	JSD   float64 `json:"jsd"`
}

// Failure is one violated verdict condition.
type Failure struct {
	Code      harness.ErrCode `json:"code"`
	Condition string          `json:"condition,omitempty"`
	Message   string          `json:"message"`
}

// Report is the outcome of a conformance run. Counters accumulated before
// a failure are kept for diagnosis even when Pass is false.
type Report struct {
	Frames     int `json:"frames"`
	Inferences int `json:"inferences"`
	Expected   int `json:"expected"`

	// NoiseEvents were counted but excluded from divergence scoring.
	NoiseEvents int `json:"noise_events"`

	// Scored is the number of events that contributed a divergence sample.
	Scored int `json:"scored"`

	Violations int     `json:"violations"`
	SumJSD     float64 `json:"sum_jsd"`
	MaxJSD     float64 `json:"max_jsd"`

	// MeanJSD and ViolationRatio divide by Inferences, noise events
	// included.
	MeanJSD        float64 `json:"mean_jsd"`
	ViolationRatio float64 `json:"violation_ratio"`

	// ActiveViolationRatio divides by Scored. Diagnostic only; it takes
	// no part in the verdict.
	ActiveViolationRatio float64 `json:"active_violation_ratio"`

	Degenerate      int `json:"degenerate"`
	GoldenExhausted int `json:"golden_exhausted"`

	Thresholds Thresholds `json:"thresholds"`
	Samples    []Sample   `json:"samples,omitempty"`
	Failures   []Failure  `json:"failures,omitempty"`
	Pass       bool       `json:"pass"`
}

func (r *Report) addFailure(code harness.ErrCode, condition, msg string) {
	r.Failures = append(r.Failures, Failure{Code: code, Condition: condition, Message: msg})
	r.Pass = false
}

// HasFailure reports whether the report contains a failure with code.
func (r *Report) HasFailure(code harness.ErrCode) bool {
	for _, f := range r.Failures {
		if f.Code == code {
			return true
		}
	}
	return false
}

// HasCondition reports whether a divergence threshold failure was
// recorded for condition.
func (r *Report) HasCondition(condition string) bool {
	for _, f := range r.Failures {
		if f.Code == harness.ErrCodeDivergenceExceeded && f.Condition == condition {
			return true
		}
	}
	return false
}

// Err returns nil for a passing report, otherwise every failure joined
// as *harness.Error values.
func (r *Report) Err() error {
	if r.Pass {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		he := &harness.Error{Code: f.Code, Message: f.Message}
		if f.Condition != "" {
			he.Details = map[string]string{"condition": f.Condition}
		}
		errs = append(errs, he)
	}
	return errors.Join(errs...)
}

// finish computes the aggregates and applies the verdict policy. Every
// condition is checked independently.
func (r *Report) finish() {
	r.Pass = true
	if r.GoldenExhausted > 0 {
		r.addFailure(harness.ErrCodeGoldenExhausted, "",
			fmt.Sprintf("%d inference events arrived after the last golden row", r.GoldenExhausted))
	}
	if r.Degenerate > 0 {
		r.addFailure(harness.ErrCodeDegenerateDistribution, "",
			fmt.Sprintf("%d events had an all -128 score vector", r.Degenerate))
	}
	if r.Inferences == 0 {
		r.addFailure(harness.ErrCodeNoInferences, "", "KWS did not perform any inferences")
	}
	if r.Inferences != r.Expected {
		r.addFailure(harness.ErrCodeInferenceCountMismatch, "",
			fmt.Sprintf("KWS expected %d inferences but got %d", r.Expected, r.Inferences))
	}
	if r.Inferences == 0 {
		return
	}

	n := float64(r.Inferences)
	r.MeanJSD = r.SumJSD / n
	r.ViolationRatio = float64(r.Violations) / n
	if r.Scored > 0 {
		r.ActiveViolationRatio = float64(r.Violations) / float64(r.Scored)
	}

	th := r.Thresholds
	if r.MaxJSD > th.MaxJSD {
		r.addFailure(harness.ErrCodeDivergenceExceeded, ConditionMaxJSD,
			fmt.Sprintf("max JSD %.5f exceeds %.5f", r.MaxJSD, th.MaxJSD))
	}
	if r.ViolationRatio > th.MaxViolationRatio {
		r.addFailure(harness.ErrCodeDivergenceExceeded, ConditionViolationRatio,
			fmt.Sprintf("JSD violations: %d of %d rows (%.2f%%) above %.4f, limit %.2f%%",
				r.Violations, r.Inferences, 100*r.ViolationRatio, th.RowJSD, 100*th.MaxViolationRatio))
	}
	if r.MeanJSD > th.MeanJSD {
		r.addFailure(harness.ErrCodeDivergenceExceeded, ConditionMeanJSD,
			fmt.Sprintf("mean JSD %.6f exceeds %.6f", r.MeanJSD, th.MeanJSD))
	}
}
