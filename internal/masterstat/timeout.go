package masterstat

import (
	"fmt"
	"time"
)

// Timeout is an optional wait bound for a single query.
// The zero value means no timeout.
type Timeout struct {
	d   time.Duration
	set bool
}

// NoTimeout returns a Timeout that waits until a response arrives or the socket fails.
func NoTimeout() Timeout {
	return Timeout{}
}

// WithTimeout returns a Timeout bounded by d. A zero or negative d is still a bound
// and expires immediately.
func WithTimeout(d time.Duration) Timeout {
	return Timeout{d: d, set: true}
}

// Duration returns the bound and whether one is set.
func (t Timeout) Duration() (time.Duration, bool) {
	return t.d, t.set
}

// deadline returns the absolute deadline counted from start, or the zero time if unbounded.
func (t Timeout) deadline(start time.Time) time.Time {
	if !t.set {
		return time.Time{}
	}

	return start.Add(t.d)
}

func (t Timeout) String() string {
	if !t.set {
		return "none"
	}

	return fmt.Sprint(t.d)
}
