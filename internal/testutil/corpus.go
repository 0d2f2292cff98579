package testutil

import (
	"math"

	"github.com/roach88/audiomark/internal/corpus"
	"github.com/roach88/audiomark/internal/pipeline"
)

// Reference corpus shape. The reference keyword-spotting pipeline turns
// the 93 frames into 73 inference events.
const (
	ReferenceFrames     = corpus.ReferenceFrames
	ReferenceInferences = 73
)

// SyntheticCorpus returns a corpus of frames full-size frames.
func SyntheticCorpus(frames int) *corpus.Corpus {
	c, err := corpus.Synthetic(frames, pipeline.FrameSamples)
	if err != nil {
		panic(err)
	}
	return c
}

// ReferenceCorpus returns the 93-frame synthetic corpus.
func ReferenceCorpus() *corpus.Corpus {
	return corpus.Reference()
}

// Uniform returns a vector whose entries are all v.
func Uniform(v int8) pipeline.Classes {
	var c pipeline.Classes
	for i := range c {
		c[i] = v
	}
	return c
}

// OneHot returns a vector with 127 at class and -128 elsewhere.
func OneHot(class int) pipeline.Classes {
	c := Uniform(math.MinInt8)
	c[class] = math.MaxInt8
	return c
}
