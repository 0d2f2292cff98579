package pipeline

import "errors"

// Keyword-spotting channel names.
const (
	ChanAECOutput = "aec_output"
	ChanAudioFIFO = "audio_fifo"
	ChanMFCCFIFO  = "mfcc_fifo"
	ChanClasses   = "classes"
)

// Keyword-spotting channel sizes, in elements.
const (
	FrameSamples     = 256
	AudioFIFOSamples = 13 * 64
	MFCCFIFOLen      = 490
	NumClasses       = 12
)

// Classes is one classification vector: quantized log-probability-like
// scores in [-128, 127], one per keyword class.
type Classes [NumClasses]int8

// Max returns the largest score in the vector.
func (c Classes) Max() int8 {
	m := c[0]
	for _, v := range c[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ErrNotReset is returned by RunStep when the PUT has no arena.
var ErrNotReset = errors.New("pipeline: RunStep before Reset")

// Pipeline is the opaque unit exercised by the harness.
//
// Implementations are not safe for concurrent use. All calls block until
// the operation has completed.
type Pipeline interface {
	// QuerySize returns the number of arena bytes the pipeline requires.
	// It may be called before any arena exists.
	QuerySize() int

	// Reset (re)initialises pipeline state over arena. The arena is at
	// least QuerySize bytes long and stays owned by the caller.
	Reset(arena *Arena) error

	// RunStep advances the pipeline by one input frame read from the
	// ChanAECOutput buffer. It returns true when an inference completed
	// during this call; the new vector is then in ChanClasses. When it
	// returns false the output buffers are left unspecified.
	RunStep(bufs *BufferSet) (bool, error)

	// Release frees resources held outside the arena. It is called once.
	Release()
}
