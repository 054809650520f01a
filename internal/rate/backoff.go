package rate

import "time"

// Backoff tracks a worker's consecutive-failure count and derives the
// exponential delay from it. It is plain state, not a control-flow
// construct, so it can be tested in isolation. Not safe for concurrent
// use; each worker owns its own.
type Backoff struct {
	base time.Duration
	max  time.Duration

	failures int
}

// NewBackoff returns a backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration) *Backoff {
	return &Backoff{base: base, max: max}
}

// Failure records a failed operation.
func (b *Backoff) Failure() { b.failures++ }

// Success resets the streak.
func (b *Backoff) Success() { b.failures = 0 }

// Failures returns the current consecutive-failure count.
func (b *Backoff) Failures() int { return b.failures }

// Delay returns the extra wait owed to the current failure streak:
// zero when healthy, base×2^(n-1) capped at max otherwise.
func (b *Backoff) Delay() time.Duration {
	if b.failures == 0 {
		return 0
	}
	d := b.base
	for i := 1; i < b.failures; i++ {
		d *= 2
		if d >= b.max {
			return b.max
		}
	}
	if d > b.max {
		return b.max
	}
	return d
}
