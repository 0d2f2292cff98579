// Package corpus loads the replay inputs of a conformance run: an ordered
// sequence of fixed-size PCM16 audio frames and an ordered table of golden
// classification rows.
//
// Both sequences are immutable once loaded and are only ever walked
// forward through a cursor; there is no random access.
package corpus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/audiomark/internal/pipeline"
)

// ErrPartialFrame is returned when audio data does not divide into whole frames.
var ErrPartialFrame = errors.New("audio length is not a whole number of frames")

// Frame is one block of PCM16 samples.
type Frame []int16

// Corpus is an ordered, immutable sequence of equally sized frames.
type Corpus struct {
	frames       []Frame
	frameSamples int
}

// New builds a corpus from frames, which must all hold frameSamples samples.
func New(frames []Frame, frameSamples int) (*Corpus, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}
	for i, f := range frames {
		if len(f) != frameSamples {
			return nil, fmt.Errorf("frame %d has %d samples, want %d", i, len(f), frameSamples)
		}
	}
	return &Corpus{frames: frames, frameSamples: frameSamples}, nil
}

// Len returns the number of frames.
func (c *Corpus) Len() int {
	return len(c.frames)
}

// FrameSamples returns the samples per frame.
func (c *Corpus) FrameSamples() int {
	return c.frameSamples
}

// Samples returns the total sample count.
func (c *Corpus) Samples() int {
	return len(c.frames) * c.frameSamples
}

// Cursor returns a forward-only cursor positioned before the first frame.
func (c *Corpus) Cursor() *FrameCursor {
	return &FrameCursor{frames: c.frames}
}

// FrameCursor walks a corpus once, in order.
type FrameCursor struct {
	frames []Frame
	pos    int
}

// Next returns the next frame and its index, or ok=false at the end.
func (c *FrameCursor) Next() (frame Frame, idx int, ok bool) {
	if c.pos >= len(c.frames) {
		return nil, c.pos, false
	}
	idx = c.pos
	c.pos++
	return c.frames[idx], idx, true
}

// LoadAudio reads a corpus from path. Files ending in .wav are decoded as
// 16-bit mono PCM WAV; anything else is raw little-endian int16.
func LoadAudio(path string, frameSamples int) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio %q: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, _, err := DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", path, err)
		}
		return FromSamples(samples, frameSamples)
	}
	c, err := DecodeRaw(data, frameSamples)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return c, nil
}

// DecodeRaw splits raw little-endian int16 data into frames.
func DecodeRaw(data []byte, frameSamples int) (*Corpus, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd byte count %d: %w", len(data), ErrPartialFrame)
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return FromSamples(samples, frameSamples)
}

// FromSamples splits a sample stream into frames of frameSamples.
func FromSamples(samples []int16, frameSamples int) (*Corpus, error) {
	if frameSamples <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSamples)
	}
	if len(samples)%frameSamples != 0 {
		return nil, fmt.Errorf("%d samples, frame size %d: %w", len(samples), frameSamples, ErrPartialFrame)
	}
	frames := make([]Frame, len(samples)/frameSamples)
	for i := range frames {
		frames[i] = Frame(samples[i*frameSamples : (i+1)*frameSamples])
	}
	return &Corpus{frames: frames, frameSamples: frameSamples}, nil
}

// EncodeRaw serialises the corpus as raw little-endian int16.
func (c *Corpus) EncodeRaw() []byte {
	out := make([]byte, 0, c.Samples()*2)
	for _, f := range c.frames {
		for _, s := range f {
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
		}
	}
	return out
}

// Golden is an ordered table of reference classification rows.
type Golden struct {
	rows []pipeline.Classes
}

// NewGolden wraps rows.
func NewGolden(rows []pipeline.Classes) *Golden {
	return &Golden{rows: rows}
}

// Len returns the number of rows.
func (g *Golden) Len() int {
	return len(g.rows)
}

// Rows returns a copy of the table.
func (g *Golden) Rows() []pipeline.Classes {
	return append([]pipeline.Classes(nil), g.rows...)
}

// Cursor returns a forward-only cursor positioned before the first row.
func (g *Golden) Cursor() *RowCursor {
	return &RowCursor{rows: g.rows}
}

// LoadGolden reads a raw int8 golden table, pipeline.NumClasses bytes per row.
func LoadGolden(path string) (*Golden, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read golden %q: %w", path, err)
	}
	g, err := DecodeGolden(data)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}
	return g, nil
}

// DecodeGolden parses raw int8 rows.
func DecodeGolden(data []byte) (*Golden, error) {
	if len(data)%pipeline.NumClasses != 0 {
		return nil, fmt.Errorf("golden table has %d bytes, not a multiple of %d", len(data), pipeline.NumClasses)
	}
	rows := make([]pipeline.Classes, len(data)/pipeline.NumClasses)
	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = int8(data[i*pipeline.NumClasses+j])
		}
	}
	return &Golden{rows: rows}, nil
}

// Encode serialises the table as raw int8 rows.
func (g *Golden) Encode() []byte {
	out := make([]byte, 0, len(g.rows)*pipeline.NumClasses)
	for _, r := range g.rows {
		for _, v := range r {
			out = append(out, byte(v))
		}
	}
	return out
}

// RowCursor walks a golden table once, in order.
type RowCursor struct {
	rows []pipeline.Classes
	pos  int
}

// Next returns the next row, or ok=false once the table is exhausted.
func (c *RowCursor) Next() (row pipeline.Classes, ok bool) {
	if c.pos >= len(c.rows) {
		return row, false
	}
	row = c.rows[c.pos]
	c.pos++
	return row, true
}

// Consumed returns how many rows have been returned.
func (c *RowCursor) Consumed() int {
	return c.pos
}
