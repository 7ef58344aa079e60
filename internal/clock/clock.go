package clock

import "time"

// Clock supplies the current time. Every "relative to now" computation in the
// engine goes through a Clock so tests can pin time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a clock pinned to a single instant, for tests.
type Fixed struct {
	Instant time.Time
}

// NewFixed creates a clock pinned to the given instant.
func NewFixed(instant time.Time) Fixed {
	return Fixed{Instant: instant}
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.Instant
}
