// Package clock abstracts wall-clock time so pipeline stages like the
// timestamp linter and TimestampEnforcer plugin can be tested against fixed
// or simulated time instead of time.Now.
package clock

import "time"

// Source returns the current time. SystemTimeSource is the production
// implementation; tests supply a FixedSource or their own stub.
type Source interface {
	Now() time.Time
}

// SystemTimeSource reports the real wall clock.
type SystemTimeSource struct{}

// Now returns time.Now().
func (SystemTimeSource) Now() time.Time { return time.Now() }

// FixedSource always reports the same instant, for deterministic tests.
type FixedSource struct {
	At time.Time
}

// Now returns the fixed instant.
func (f FixedSource) Now() time.Time { return f.At }
