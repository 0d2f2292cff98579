package pipeline

import (
	"errors"
	"fmt"
)

// DefaultMaxArenaBytes bounds a single arena allocation.
const DefaultMaxArenaBytes = 64 << 20

// ErrArenaSize is wrapped by Allocate when the requested size is rejected.
var ErrArenaSize = errors.New("invalid arena size")

// Arena is the single memory block a pipeline keeps its state in.
// It is allocated by the harness, handed to Reset, and released once.
type Arena struct {
	buf      []byte
	released bool
}

// Allocate returns a zeroed arena of size bytes. Sizes that are not
// positive or exceed limit (when limit > 0) are rejected with ErrArenaSize.
func Allocate(size, limit int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrArenaSize)
	}
	if limit > 0 && size > limit {
		return nil, fmt.Errorf("allocate %d bytes (limit %d): %w", size, limit, ErrArenaSize)
	}
	return &Arena{buf: make([]byte, size)}, nil
}

// Bytes returns the arena memory. It is nil after Release.
func (a *Arena) Bytes() []byte {
	return a.buf
}

// Len returns the arena size in bytes.
func (a *Arena) Len() int {
	return len(a.buf)
}

// Release drops the arena memory. Calling it more than once is a no-op.
func (a *Arena) Release() {
	a.buf = nil
	a.released = true
}

// Released reports whether Release has been called.
func (a *Arena) Released() bool {
	return a.released
}
