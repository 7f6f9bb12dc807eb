package reconcile

import "time"

const (
	// Forever is the "sleep until woken" delay returned when nothing can
	// become due on its own.
	Forever = 365 * 24 * time.Hour

	// DefaultActivityEpsilon absorbs the millisecond jitter of idle sources.
	DefaultActivityEpsilon = 10 * time.Millisecond
	// DefaultMinSleep keeps the driver from spinning on tiny gaps.
	DefaultMinSleep = 10 * time.Millisecond
)

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// minPositive lowers cur to d when d is positive and smaller.
func minPositive(cur, d time.Duration) time.Duration {
	if d > 0 && d < cur {
		return d
	}
	return cur
}
