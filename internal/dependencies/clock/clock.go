package clock

import "time"

// Clock supplies the current time. Move timestamps, session update times and
// token expiry all go through it so tests can pin time with a mock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current system time
func (c *RealClock) Now() time.Time {
	return time.Now()
}
