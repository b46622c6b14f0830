package motion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettleRequiresUnbrokenQuietRun(t *testing.T) {
	s := NewSettle(0.05, 2*time.Second)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 19 ticks below threshold at 100ms spacing: 1.9s elapsed, not settled.
	now := start
	for i := 0; i < 19; i++ {
		s.Update(0.01, now)
		assert.False(t, s.IsSettled(), "tick %d", i)
		now = now.Add(100 * time.Millisecond)
	}

	// The tick at 2.0s elapsed flips the flag.
	s.Update(0.01, start.Add(2*time.Second))
	assert.True(t, s.IsSettled())
}

func TestSettleSpikeResetsClockToZero(t *testing.T) {
	s := NewSettle(0.05, 2*time.Second)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Update(0.01, start)
	s.Update(0.01, start.Add(1900*time.Millisecond))
	assert.False(t, s.IsSettled())

	// One tick exactly at the threshold wipes the accumulated run.
	s.Update(0.05, start.Add(1950*time.Millisecond))
	assert.False(t, s.IsSettled())

	// Another 1.9s of quiet is still not enough; the clock restarted.
	s.Update(0.01, start.Add(2*time.Second))
	s.Update(0.01, start.Add(3900*time.Millisecond))
	assert.False(t, s.IsSettled())

	s.Update(0.01, start.Add(4*time.Second))
	assert.True(t, s.IsSettled())
}

func TestSettleStaysSettledWhileQuiet(t *testing.T) {
	s := NewSettle(0.05, time.Second)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Update(0.0, start)
	s.Update(0.0, start.Add(time.Second))
	assert.True(t, s.IsSettled())

	s.Update(0.01, start.Add(2*time.Second))
	assert.True(t, s.IsSettled())

	// Motion clears it again.
	s.Update(0.9, start.Add(3*time.Second))
	assert.False(t, s.IsSettled())
}

func TestSettleExplicitReset(t *testing.T) {
	s := NewSettle(0.05, time.Second)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Update(0.0, start)
	s.Update(0.0, start.Add(time.Second))
	assert.True(t, s.IsSettled())

	s.Reset()
	assert.False(t, s.IsSettled())

	// After a reset the window starts over even though every observed
	// level was below the threshold.
	s.Update(0.0, start.Add(1100*time.Millisecond))
	assert.False(t, s.IsSettled())
	s.Update(0.0, start.Add(2100*time.Millisecond))
	assert.True(t, s.IsSettled())
}

func TestSettleZeroDurationSettlesImmediately(t *testing.T) {
	s := NewSettle(0.05, 0)
	s.Update(0.01, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	assert.True(t, s.IsSettled())
}
