package bench

import "time"

// Clock is a monotonic microsecond time source.
type Clock interface {
	Microseconds() uint64
}

// SystemClock reads the process monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a SystemClock whose reading starts near 0.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Microseconds returns the microseconds elapsed since the clock was
// created.
func (c *SystemClock) Microseconds() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}
