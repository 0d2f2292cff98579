package pipeline

import (
	"errors"
	"fmt"
)

// Kind is the element type of a buffer.
type Kind int

const (
	KindInt16 Kind = iota + 1
	KindInt8
)

// Size returns the element size in bytes.
func (k Kind) Size() int {
	switch k {
	case KindInt16:
		return 2
	case KindInt8:
		return 1
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindInt16:
		return "int16"
	case KindInt8:
		return "int8"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrUnknownBuffer is returned when a channel name is not in the set.
	ErrUnknownBuffer = errors.New("unknown buffer")

	// ErrBufferKind is returned when a buffer is accessed as the wrong type.
	ErrBufferKind = errors.New("buffer kind mismatch")

	// ErrBufferBounds is returned when an access exceeds a buffer's length.
	ErrBufferBounds = errors.New("buffer bounds exceeded")
)

// Buffer is a named, fixed-length block of int16 or int8 elements.
type Buffer struct {
	name string
	kind Kind
	i16  []int16
	i8   []int8
}

// NewBuffer allocates a zeroed buffer of n elements.
func NewBuffer(name string, kind Kind, n int) *Buffer {
	b := &Buffer{name: name, kind: kind}
	switch kind {
	case KindInt16:
		b.i16 = make([]int16, n)
	case KindInt8:
		b.i8 = make([]int8, n)
	}
	return b
}

// Name returns the channel name.
func (b *Buffer) Name() string { return b.name }

// Kind returns the element type.
func (b *Buffer) Kind() Kind { return b.kind }

// Len returns the number of elements.
func (b *Buffer) Len() int {
	if b.kind == KindInt16 {
		return len(b.i16)
	}
	return len(b.i8)
}

// Capacity returns the buffer size in bytes.
func (b *Buffer) Capacity() int {
	return b.Len() * b.kind.Size()
}

// Int16 returns the first n elements of an int16 buffer.
func (b *Buffer) Int16(n int) ([]int16, error) {
	if b.kind != KindInt16 {
		return nil, fmt.Errorf("%s: want int16, have %s: %w", b.name, b.kind, ErrBufferKind)
	}
	if n < 0 || n > len(b.i16) {
		return nil, fmt.Errorf("%s: %d elements requested, capacity %d: %w", b.name, n, len(b.i16), ErrBufferBounds)
	}
	return b.i16[:n], nil
}

// Int8 returns the first n elements of an int8 buffer.
func (b *Buffer) Int8(n int) ([]int8, error) {
	if b.kind != KindInt8 {
		return nil, fmt.Errorf("%s: want int8, have %s: %w", b.name, b.kind, ErrBufferKind)
	}
	if n < 0 || n > len(b.i8) {
		return nil, fmt.Errorf("%s: %d elements requested, capacity %d: %w", b.name, n, len(b.i8), ErrBufferBounds)
	}
	return b.i8[:n], nil
}

// Clear zeroes the buffer.
func (b *Buffer) Clear() {
	clear(b.i16)
	clear(b.i8)
}

// BufferSet is the ordered collection of channels passed to RunStep.
type BufferSet struct {
	bufs  []*Buffer
	index map[string]int
}

// NewBufferSet builds a set from bufs. Names must be unique.
func NewBufferSet(bufs ...*Buffer) (*BufferSet, error) {
	s := &BufferSet{index: make(map[string]int, len(bufs))}
	for _, b := range bufs {
		if _, dup := s.index[b.name]; dup {
			return nil, fmt.Errorf("duplicate buffer %q", b.name)
		}
		s.index[b.name] = len(s.bufs)
		s.bufs = append(s.bufs, b)
	}
	return s, nil
}

// NewKWSBuffers returns the four keyword-spotting channels.
func NewKWSBuffers() *BufferSet {
	s, _ := NewBufferSet(
		NewBuffer(ChanAECOutput, KindInt16, FrameSamples),
		NewBuffer(ChanAudioFIFO, KindInt16, AudioFIFOSamples),
		NewBuffer(ChanMFCCFIFO, KindInt8, MFCCFIFOLen),
		NewBuffer(ChanClasses, KindInt8, NumClasses),
	)
	return s
}

// Get returns the buffer bound to name.
func (s *BufferSet) Get(name string) (*Buffer, error) {
	i, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownBuffer)
	}
	return s.bufs[i], nil
}

// Int16 returns the first n elements of the int16 channel name.
func (s *BufferSet) Int16(name string, n int) ([]int16, error) {
	b, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return b.Int16(n)
}

// Int8 returns the first n elements of the int8 channel name.
func (s *BufferSet) Int8(name string, n int) ([]int8, error) {
	b, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return b.Int8(n)
}

// Buffers returns the channels in declaration order.
func (s *BufferSet) Buffers() []*Buffer {
	return s.bufs
}

// Clear zeroes every channel.
func (s *BufferSet) Clear() {
	for _, b := range s.bufs {
		b.Clear()
	}
}
