package harness

import (
	"errors"
	"fmt"
)

// ErrCode categorizes harness failures.
type ErrCode string

const (
	// ErrCodeAllocation indicates the pipeline arena could not be allocated.
	ErrCodeAllocation ErrCode = "ALLOCATION_FAILURE"

	// ErrCodePipelineRun indicates a Reset or RunStep call failed.
	ErrCodePipelineRun ErrCode = "PIPELINE_RUN_FAILURE"

	// ErrCodeNoInferences indicates a replay produced no inference events.
	ErrCodeNoInferences ErrCode = "NO_INFERENCES"

	// ErrCodeInferenceCountMismatch indicates produced events differ from
	// the expected count.
	ErrCodeInferenceCountMismatch ErrCode = "INFERENCE_COUNT_MISMATCH"

	// ErrCodeDivergenceExceeded indicates a divergence threshold was exceeded.
	ErrCodeDivergenceExceeded ErrCode = "DIVERGENCE_THRESHOLD_EXCEEDED"

	// ErrCodeGoldenExhausted indicates an event arrived after the last
	// golden row was consumed.
	ErrCodeGoldenExhausted ErrCode = "GOLDEN_EXHAUSTED"

	// ErrCodeDegenerateDistribution indicates a score vector whose shifted
	// sum is zero.
	ErrCodeDegenerateDistribution ErrCode = "DEGENERATE_DISTRIBUTION"
)

// Error is a harness failure with a stable code and literal diagnostics.
type Error struct {
	// Code identifies the failure category.
	Code ErrCode

	// Message is a human-readable description.
	Message string

	// Details holds the literal values behind the failure.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrCode {
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// HasCode reports whether any *Error in err's tree carries code.
// It walks joined errors as well as wrapped ones.
func HasCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	if he, ok := err.(*Error); ok && he.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if HasCode(e, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	}
	return false
}

// IsAllocationFailure reports whether err is an allocation failure.
func IsAllocationFailure(err error) bool {
	return HasCode(err, ErrCodeAllocation)
}

// IsPipelineRunFailure reports whether err is a pipeline run failure.
func IsPipelineRunFailure(err error) bool {
	return HasCode(err, ErrCodePipelineRun)
}

// IsConformanceFailure reports whether err carries any conformance code.
func IsConformanceFailure(err error) bool {
	return HasCode(err, ErrCodeNoInferences) ||
		HasCode(err, ErrCodeInferenceCountMismatch) ||
		HasCode(err, ErrCodeDivergenceExceeded) ||
		HasCode(err, ErrCodeGoldenExhausted) ||
		HasCode(err, ErrCodeDegenerateDistribution)
}

// NewAllocationError creates an Error for a rejected arena allocation.
func NewAllocationError(size, limit int, err error) *Error {
	return &Error{
		Code:    ErrCodeAllocation,
		Message: fmt.Sprintf("failed to allocate %d byte arena", size),
		Details: map[string]string{
			"size":  fmt.Sprintf("%d", size),
			"limit": fmt.Sprintf("%d", limit),
		},
		Err: err,
	}
}

// NewPipelineRunError creates an Error for a failed pipeline call.
// stage is "reset" or "step"; step is the zero-based RunStep index.
func NewPipelineRunError(stage string, step uint64, err error) *Error {
	return &Error{
		Code:    ErrCodePipelineRun,
		Message: fmt.Sprintf("pipeline %s failed at step %d", stage, step),
		Details: map[string]string{
			"stage": stage,
			"step":  fmt.Sprintf("%d", step),
		},
		Err: err,
	}
}
