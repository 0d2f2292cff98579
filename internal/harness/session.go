package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/audiomark/internal/pipeline"
)

// Options configures a Session.
type Options struct {
	// MaxArenaBytes bounds the arena allocation. Zero means
	// pipeline.DefaultMaxArenaBytes; negative means unbounded.
	MaxArenaBytes int

	// Logger receives lifecycle logs. Nil discards them.
	Logger *slog.Logger
}

// Session binds a pipeline to its arena and buffer channels.
// A Session is not safe for concurrent use.
type Session struct {
	put     pipeline.Pipeline
	arena   *pipeline.Arena
	bufs    *pipeline.BufferSet
	staging []int16
	classes []int8
	logger  *slog.Logger
	steps   uint64
	closed  bool
}

// Open queries the pipeline's memory requirement, allocates the arena,
// binds the keyword-spotting channels and resets the pipeline.
//
// On any failure the pipeline is released before returning.
func Open(put pipeline.Pipeline, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := opts.MaxArenaBytes
	switch {
	case limit == 0:
		limit = pipeline.DefaultMaxArenaBytes
	case limit < 0:
		limit = 0
	}

	size := put.QuerySize()
	logger.Info("pipeline memory requirement", "bytes", size)

	arena, err := pipeline.Allocate(size, limit)
	if err != nil {
		put.Release()
		return nil, NewAllocationError(size, limit, err)
	}

	bufs := pipeline.NewKWSBuffers()
	staging, err := bufs.Int16(pipeline.ChanAECOutput, pipeline.FrameSamples)
	if err != nil {
		put.Release()
		arena.Release()
		return nil, fmt.Errorf("bind staging buffer: %w", err)
	}
	classes, err := bufs.Int8(pipeline.ChanClasses, pipeline.NumClasses)
	if err != nil {
		put.Release()
		arena.Release()
		return nil, fmt.Errorf("bind classes buffer: %w", err)
	}

	s := &Session{
		put:     put,
		arena:   arena,
		bufs:    bufs,
		staging: staging,
		classes: classes,
		logger:  logger,
	}
	if err := s.Reset(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Reset clears the channels and reinitialises the pipeline over the
// same arena. The step counter restarts at zero.
func (s *Session) Reset() error {
	if s.closed {
		return fmt.Errorf("reset: session closed")
	}
	s.bufs.Clear()
	s.steps = 0
	if err := s.put.Reset(s.arena); err != nil {
		return NewPipelineRunError("reset", 0, err)
	}
	s.logger.Debug("pipeline reset", "arena_bytes", s.arena.Len())
	return nil
}

// Step copies frame into the staging channel and runs one pipeline step.
// It returns true when the pipeline completed an inference; Classes then
// holds the new vector.
func (s *Session) Step(frame []int16) (bool, error) {
	if s.closed {
		return false, fmt.Errorf("step: session closed")
	}
	if len(frame) != len(s.staging) {
		return false, fmt.Errorf("step %d: frame has %d samples, staging holds %d: %w",
			s.steps, len(frame), len(s.staging), pipeline.ErrBufferBounds)
	}
	copy(s.staging, frame)

	step := s.steps
	s.steps++
	inferred, err := s.put.RunStep(s.bufs)
	if err != nil {
		return false, NewPipelineRunError("step", step, err)
	}
	return inferred, nil
}

// Classes returns a copy of the classes channel.
func (s *Session) Classes() pipeline.Classes {
	var c pipeline.Classes
	copy(c[:], s.classes)
	return c
}

// Steps returns the number of RunStep calls since the last Reset.
func (s *Session) Steps() uint64 {
	return s.steps
}

// ArenaBytes returns the arena size.
func (s *Session) ArenaBytes() int {
	return s.arena.Len()
}

// Close releases the pipeline and the arena. It is safe to call more
// than once; only the first call has any effect.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.put.Release()
	s.arena.Release()
	s.logger.Debug("pipeline released")
}
