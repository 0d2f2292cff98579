// Package mock provides a scripted test double for pipeline.Pipeline.
//
// Each RunStep call consumes the next entry of Steps. An entry either
// fails, reports no inference, or writes its Classes into the classes
// channel and reports a new inference. Once Steps is exhausted, RunStep
// keeps returning DefaultInference with DefaultClasses.
//
// Example:
//
//	put := &mock.Pipeline{
//	    Size: 64,
//	    Steps: []mock.Step{
//	        {},
//	        {Inference: true, Classes: pipeline.Classes{127, -128, ...}},
//	        {Err: errors.New("dsp fault")},
//	    },
//	}
package mock

import (
	"errors"

	"github.com/roach88/audiomark/internal/pipeline"
)

// Step scripts the outcome of one RunStep call.
type Step struct {
	// Inference reports a new inference and writes Classes.
	Inference bool

	// Classes is written to the classes channel when Inference is set.
	Classes pipeline.Classes

	// Err, if non-nil, is returned instead of running the step.
	Err error
}

// Pipeline is a mock implementation of pipeline.Pipeline.
type Pipeline struct {
	// Size is returned by QuerySize.
	Size int

	// ResetErr, if non-nil, is returned by Reset.
	ResetErr error

	// Steps scripts RunStep in call order.
	Steps []Step

	// DefaultInference and DefaultClasses apply once Steps is exhausted.
	DefaultInference bool
	DefaultClasses   pipeline.Classes

	// OnStep, if set, runs at the start of every RunStep call.
	OnStep func(call int)

	// --- Call records ---

	// Frames holds a copy of the staging input seen by each RunStep call.
	Frames [][]int16

	// Arena is the arena passed to the last Reset call.
	Arena *pipeline.Arena

	QuerySizeCalls int
	ResetCalls     int
	RunStepCalls   int
	ReleaseCalls   int

	// RecordFrames enables the Frames record.
	RecordFrames bool
}

// QuerySize records the call and returns Size.
func (p *Pipeline) QuerySize() int {
	p.QuerySizeCalls++
	return p.Size
}

// Reset records the call and returns ResetErr.
func (p *Pipeline) Reset(arena *pipeline.Arena) error {
	p.ResetCalls++
	p.Arena = arena
	return p.ResetErr
}

// RunStep consumes the next scripted Step.
func (p *Pipeline) RunStep(bufs *pipeline.BufferSet) (bool, error) {
	call := p.RunStepCalls
	p.RunStepCalls++
	if p.OnStep != nil {
		p.OnStep(call)
	}
	if p.Arena == nil {
		return false, pipeline.ErrNotReset
	}

	if p.RecordFrames {
		in, err := bufs.Int16(pipeline.ChanAECOutput, pipeline.FrameSamples)
		if err != nil {
			return false, err
		}
		p.Frames = append(p.Frames, append([]int16(nil), in...))
	}

	step := Step{Inference: p.DefaultInference, Classes: p.DefaultClasses}
	if call < len(p.Steps) {
		step = p.Steps[call]
	}
	if step.Err != nil {
		return false, step.Err
	}
	if !step.Inference {
		return false, nil
	}

	out, err := bufs.Int8(pipeline.ChanClasses, pipeline.NumClasses)
	if err != nil {
		return false, err
	}
	copy(out, step.Classes[:])
	return true, nil
}

// Release records the call.
func (p *Pipeline) Release() {
	p.ReleaseCalls++
}

// ErrScripted is a ready-made failure for Step.Err.
var ErrScripted = errors.New("mock: scripted step failure")

var _ pipeline.Pipeline = (*Pipeline)(nil)
