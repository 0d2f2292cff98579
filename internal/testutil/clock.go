package testutil

import "sync"

// DeterministicClock is a manually advanced microsecond clock for tests.
//
// It satisfies bench.Clock. Time only moves when Advance is called, so a
// workload that advances the clock by a fixed amount per iteration makes
// calibration and measurement fully reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	now   uint64
	reads int
}

// NewDeterministicClock creates a clock reading 0.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Microseconds returns the current reading.
func (c *DeterministicClock) Microseconds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.now
}

// Advance moves the clock forward by us microseconds.
func (c *DeterministicClock) Advance(us uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += us
}

// Reads returns how many times Microseconds was called.
func (c *DeterministicClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Reset returns the clock to 0 and clears the read count.
//
// Used for test reuse. After Reset the clock behaves like a new one.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
	c.reads = 0
}
