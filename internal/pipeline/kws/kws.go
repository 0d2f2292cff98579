// Package kws is a deterministic reference keyword-spotting pipeline.
//
// It stands in for the production DSP/ML chain so the harness can be run
// end to end. Samples from each 256-sample frame are pushed into the audio
// FIFO; every time a 640-sample window is full the pipeline extracts ten
// band-energy features into the MFCC FIFO, classifies the feature history
// into twelve quantized scores, and slides the window by a 320-sample hop.
// Windows whose mean level is below the activity gate score as noise (every
// class negative); active windows put most of the mass on the best class.
//
// The arena holds the window fill level and inference count. Sample and
// feature history live in the audio_fifo and mfcc_fifo channels, so output
// after Reset is reproducible only when those channels are cleared too, as
// harness.Session.Reset does.
package kws

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/audiomark/internal/pipeline"
)

const (
	windowSamples = 640
	hopSamples    = 320
	bands         = 10
	bandSamples   = windowSamples / bands
	historyRows   = pipeline.MFCCFIFOLen / bands

	// arena layout
	offFill      = 0
	offInfers    = 4
	offEnergies  = 16
	arenaSize    = offEnergies + bands*8
	logitDivisor = 64.0

	// activityGate is the mean absolute window level, as a fraction of full
	// scale, below which a window is treated as silence.
	activityGate = 0.02
	// winnerShare is the probability mass an active window gives its top
	// class; silent windows keep silenceShare of the classifier output and
	// spread the rest evenly.
	winnerShare  = 0.6
	silenceShare = 0.2
)

// Pipeline is the reference keyword-spotting PUT.
type Pipeline struct {
	arena   *pipeline.Arena
	weights [pipeline.NumClasses][pipeline.MFCCFIFOLen]float64
}

// New returns a pipeline with its fixed classifier weights.
func New() *Pipeline {
	p := &Pipeline{}
	for c := range p.weights {
		for k := range p.weights[c] {
			p.weights[c][k] = math.Sin(float64(c*pipeline.MFCCFIFOLen+k) * 0.7)
		}
	}
	return p
}

// QuerySize implements pipeline.Pipeline.
func (p *Pipeline) QuerySize() int {
	return arenaSize
}

// Reset implements pipeline.Pipeline.
func (p *Pipeline) Reset(arena *pipeline.Arena) error {
	if arena == nil || arena.Len() < arenaSize {
		return fmt.Errorf("kws: arena too small: need %d bytes", arenaSize)
	}
	clear(arena.Bytes())
	p.arena = arena
	return nil
}

// RunStep implements pipeline.Pipeline.
func (p *Pipeline) RunStep(bufs *pipeline.BufferSet) (bool, error) {
	if p.arena == nil || p.arena.Released() {
		return false, pipeline.ErrNotReset
	}
	in, err := bufs.Int16(pipeline.ChanAECOutput, pipeline.FrameSamples)
	if err != nil {
		return false, err
	}
	fifo, err := bufs.Int16(pipeline.ChanAudioFIFO, windowSamples)
	if err != nil {
		return false, err
	}
	mfcc, err := bufs.Int8(pipeline.ChanMFCCFIFO, pipeline.MFCCFIFOLen)
	if err != nil {
		return false, err
	}
	classes, err := bufs.Int8(pipeline.ChanClasses, pipeline.NumClasses)
	if err != nil {
		return false, err
	}

	mem := p.arena.Bytes()
	fill := int(binary.LittleEndian.Uint32(mem[offFill:]))
	infers := binary.LittleEndian.Uint32(mem[offInfers:])

	inferred := false
	for _, s := range in {
		fifo[fill] = s
		fill++
		if fill < windowSamples {
			continue
		}
		level := p.extract(fifo, mfcc, mem[offEnergies:])
		infers++
		p.classify(mfcc, int(min(infers, historyRows)), level >= activityGate, classes)
		copy(fifo, fifo[hopSamples:windowSamples])
		fill = windowSamples - hopSamples
		inferred = true
	}

	binary.LittleEndian.PutUint32(mem[offFill:], uint32(fill))
	binary.LittleEndian.PutUint32(mem[offInfers:], infers)
	return inferred, nil
}

// Release implements pipeline.Pipeline.
func (p *Pipeline) Release() {
	p.arena = nil
}

// extract appends one row of band energies to the feature history and
// returns the window's mean level.
func (p *Pipeline) extract(window []int16, mfcc []int8, scratch []byte) float64 {
	copy(mfcc, mfcc[bands:])
	row := mfcc[len(mfcc)-bands:]
	var level float64
	for b := 0; b < bands; b++ {
		var sum float64
		for _, s := range window[b*bandSamples : (b+1)*bandSamples] {
			sum += math.Abs(float64(s))
		}
		e := sum / bandSamples / 32768
		binary.LittleEndian.PutUint64(scratch[b*8:], math.Float64bits(e))
		row[b] = quantize(12 * math.Log2(e+1.0/1024))
		level += e
	}
	return level / bands
}

// classify scores the newest rows of feature history.
func (p *Pipeline) classify(mfcc []int8, rows int, active bool, out []int8) {
	start := len(mfcc) - rows*bands
	var logits [pipeline.NumClasses]float64
	maxLogit := math.Inf(-1)
	best := 0
	for c := range logits {
		var acc float64
		for k := start; k < len(mfcc); k++ {
			acc += p.weights[c][k] * float64(mfcc[k])
		}
		logits[c] = acc / logitDivisor
		if logits[c] > maxLogit {
			maxLogit = logits[c]
			best = c
		}
	}

	var sum float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		prob := logits[c] / sum
		if active {
			prob *= 1 - winnerShare
			if c == best {
				prob += winnerShare
			}
		} else {
			prob = silenceShare*prob + (1-silenceShare)/pipeline.NumClasses
		}
		out[c] = quantize(prob*256 - 128)
	}
}

func quantize(v float64) int8 {
	r := math.Round(v)
	switch {
	case r < math.MinInt8:
		return math.MinInt8
	case r > math.MaxInt8:
		return math.MaxInt8
	}
	return int8(r)
}

var _ pipeline.Pipeline = (*Pipeline)(nil)
