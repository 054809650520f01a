package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FairForge/trafficgen/internal/profile"
)

func testProfile(mult float64, peak profile.PeakWindow) profile.UserProfile {
	return profile.UserProfile{
		ID:                 "u1",
		Bucket:             "b1",
		ActivityMultiplier: mult,
		Peak:               peak,
		Preferences:        map[profile.FileType]float64{profile.TypeCode: 1},
	}
}

func TestNextInterval_AlwaysPositive(t *testing.T) {
	c := NewController(10, 0.3, 0.2)
	p := testProfile(1.0, profile.PeakWindow{Start: 9, End: 17})

	for hour := 0; hour < 24; hour++ {
		now := time.Date(2024, 6, 1, hour, 30, 0, 0, time.UTC)
		for i := 0; i < 100; i++ {
			d := c.NextInterval(p, now)
			assert.Greater(t, d, time.Duration(0), "hour %d", hour)
		}
	}
}

func TestNextInterval_PeakBand(t *testing.T) {
	// alice-dev scenario: base 10 ops/min, multiplier 1.0, in peak.
	// Expected ~6s, inside the ±20% jitter band.
	c := NewController(10, 0.3, 0.2)
	p := testProfile(1.0, profile.PeakWindow{Start: 9, End: 17})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 1000; i++ {
		d := c.NextInterval(p, now)
		assert.GreaterOrEqual(t, d, 4800*time.Millisecond)
		assert.LessOrEqual(t, d, 7200*time.Millisecond)
	}
}

func TestNextInterval_OffPeakSlower(t *testing.T) {
	// Without jitter the intervals are exact: 6s in peak, 20s off peak
	// with a 0.3 factor.
	c := NewController(10, 0.3, 0)
	p := testProfile(1.0, profile.PeakWindow{Start: 9, End: 17})

	inPeak := c.NextInterval(p, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	offPeak := c.NextInterval(p, time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC))

	assert.Equal(t, 6*time.Second, inPeak)
	assert.Equal(t, 20*time.Second, offPeak)
}

func TestNextInterval_WrappingWindow(t *testing.T) {
	c := NewController(10, 0.3, 0)
	p := testProfile(1.0, profile.PeakWindow{Start: 22, End: 4})

	require.Equal(t, 1.0, c.PeakFactor(p, time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, 1.0, c.PeakFactor(p, time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)))
	require.Equal(t, 0.3, c.PeakFactor(p, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestNextInterval_ClampsTinyRates(t *testing.T) {
	// A base rate small enough to underflow the floor must still yield a
	// finite, positive interval.
	c := NewController(0.000001, 0.3, 0)
	p := testProfile(0.001, profile.PeakWindow{Start: 9, End: 17})

	d := c.NextInterval(p, time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC))
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 100*time.Minute) // 60 / 0.01 ops/min floor
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(2*time.Second, 30*time.Second)

	assert.Equal(t, time.Duration(0), b.Delay())

	b.Failure()
	assert.Equal(t, 2*time.Second, b.Delay())

	b.Failure()
	assert.Equal(t, 4*time.Second, b.Delay())

	b.Failure()
	assert.Equal(t, 8*time.Second, b.Delay())

	// Caps at max rather than growing without bound.
	for i := 0; i < 20; i++ {
		b.Failure()
	}
	assert.Equal(t, 30*time.Second, b.Delay())
	assert.Equal(t, 23, b.Failures())

	// One success resets to base behavior.
	b.Success()
	assert.Equal(t, time.Duration(0), b.Delay())
	b.Failure()
	assert.Equal(t, 2*time.Second, b.Delay())
}
