package shared

import "time"

// Clock abstracts wall-clock time so pricing (night-hour detection, replay
// windows) is deterministically testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the ambient time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// MutableClock returns whatever T currently holds; tests move it by hand.
type MutableClock struct {
	T time.Time
}

func (c *MutableClock) Now() time.Time { return c.T }
