package motion

import "time"

// Settle watches the motion-level stream and reports when activity has
// stayed below the low threshold for a continuous settle window. A single
// sample at or above the threshold resets the window completely; there is
// no partial credit. Time is injected so callers and tests control the
// clock.
type Settle struct {
	lowThreshold   float64
	settleDuration time.Duration

	belowSince time.Time
	running    bool
	settled    bool
}

// NewSettle creates a settle tracker for the given low threshold and
// required quiet window.
func NewSettle(lowThreshold float64, settleDuration time.Duration) *Settle {
	return &Settle{
		lowThreshold:   lowThreshold,
		settleDuration: settleDuration,
	}
}

// Update feeds one motion sample into the tracker.
func (s *Settle) Update(level float64, now time.Time) {
	if level >= s.lowThreshold {
		s.Reset()
		return
	}
	if !s.running {
		s.belowSince = now
		s.running = true
	}
	if now.Sub(s.belowSince) >= s.settleDuration {
		s.settled = true
	}
}

// IsSettled reports whether the quiet window has elapsed without
// interruption.
func (s *Settle) IsSettled() bool {
	return s.settled
}

// Reset clears the timer and the settled flag, regardless of the last
// observed level. Used on external events like a manual motion reset.
func (s *Settle) Reset() {
	s.belowSince = time.Time{}
	s.running = false
	s.settled = false
}
