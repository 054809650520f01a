// Package rate converts behavioral profiles into operation cadence: the
// inter-operation interval for each worker, and the backoff applied after
// consecutive failures.
package rate

import (
	"math/rand"
	"sync"
	"time"

	"github.com/FairForge/trafficgen/internal/profile"
)

// minOpsPerMin is the floor the target rate is clamped to. It keeps the
// interval finite even for pathological multiplier/factor combinations.
const minOpsPerMin = 0.01

// Controller computes per-profile operation intervals.
type Controller struct {
	baseRatePerMin float64
	offPeakFactor  float64
	jitterFraction float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewController builds a controller. baseRatePerMin is the roster-wide base
// rate; offPeakFactor scales it outside a user's peak window; intervals are
// jittered by a uniform ±jitterFraction so identical profiles do not fall
// into lockstep.
func NewController(baseRatePerMin, offPeakFactor, jitterFraction float64) *Controller {
	return &Controller{
		baseRatePerMin: baseRatePerMin,
		offPeakFactor:  offPeakFactor,
		jitterFraction: jitterFraction,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// PeakFactor returns 1.0 inside the profile's peak window and the off-peak
// factor outside it.
func (c *Controller) PeakFactor(p profile.UserProfile, now time.Time) float64 {
	if p.InPeak(now) {
		return 1.0
	}
	return c.offPeakFactor
}

// NextInterval returns the delay before the profile's next operation at
// time now. The result is always strictly positive and finite.
func (c *Controller) NextInterval(p profile.UserProfile, now time.Time) time.Duration {
	target := c.baseRatePerMin * p.ActivityMultiplier * c.PeakFactor(p, now)
	if target < minOpsPerMin {
		target = minOpsPerMin
	}
	interval := time.Duration(60 / target * float64(time.Second))

	jittered := time.Duration(float64(interval) * (1 + c.jitterOffset()))
	if jittered <= 0 {
		jittered = time.Millisecond
	}
	return jittered
}

// jitterOffset draws a uniform value in [-jitterFraction, +jitterFraction].
func (c *Controller) jitterOffset() float64 {
	if c.jitterFraction == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return (c.rng.Float64()*2 - 1) * c.jitterFraction
}
