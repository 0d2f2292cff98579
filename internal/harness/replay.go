package harness

import (
	"fmt"

	"github.com/roach88/audiomark/internal/corpus"
)

// Replay is one full pass of a corpus through a session. It is the unit
// of work timed by the benchmark runner: one pass over the reference
// corpus is one pipeline iteration.
type Replay struct {
	session *Session
	corpus  *corpus.Corpus
	events  uint64
}

// NewReplay returns a replay of c through s.
func NewReplay(s *Session, c *corpus.Corpus) *Replay {
	return &Replay{session: s, corpus: c}
}

// Run feeds every frame through the pipeline in order. Pipeline state is
// carried across passes, as it would be for a continuous stream. The
// first failing step aborts the pass.
func (r *Replay) Run() error {
	cur := r.corpus.Cursor()
	for {
		frame, idx, ok := cur.Next()
		if !ok {
			return nil
		}
		inferred, err := r.session.Step(frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", idx, err)
		}
		if inferred {
			r.events++
		}
	}
}

// Events returns the inference events seen across all passes.
func (r *Replay) Events() uint64 {
	return r.events
}
