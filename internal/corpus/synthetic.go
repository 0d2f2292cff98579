package corpus

import (
	"math"

	"github.com/roach88/audiomark/internal/pipeline"
)

// Built-in reference stream shape: 93 frames of 256 samples, about 1.5 s
// at 16 kHz.
const (
	ReferenceFrames       = 93
	ReferenceFrameSamples = pipeline.FrameSamples
	ReferenceSampleRate   = 16000
)

// SyntheticSamples returns n deterministic PCM16 samples: tone bursts
// that change every 1600 samples over low-level pseudo-random noise, so
// band energies vary from window to window.
func SyntheticSamples(n int) []int16 {
	out := make([]int16, n)
	seed := uint32(0x2545F491)
	for i := range out {
		seed = seed*1664525 + 1013904223
		noise := float64(int32(seed>>16)&0x3ff) - 512

		burst := (i / 1600) % 3
		freq := 300.0 + 450.0*float64(burst)
		amp := 4000.0 * float64(burst)
		tone := amp * math.Sin(2*math.Pi*freq*float64(i)/ReferenceSampleRate)

		out[i] = int16(tone + noise)
	}
	return out
}

// Synthetic returns a corpus of frames synthetic frames.
func Synthetic(frames, frameSamples int) (*Corpus, error) {
	return FromSamples(SyntheticSamples(frames*frameSamples), frameSamples)
}

// Reference returns the built-in 93-frame synthetic stream used when no
// audio file is configured.
func Reference() *Corpus {
	c, err := Synthetic(ReferenceFrames, ReferenceFrameSamples)
	if err != nil {
		panic(err)
	}
	return c
}
