// Package clock provides the monotonic timestamps the scheduler reasons in.
//
// Timestamps are durations since an arbitrary, fixed epoch. Only differences
// between two readings are meaningful.
package clock

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Clock reads a monotonic timestamp.
type Clock interface {
	Now() (time.Duration, error)
}

// Error reports an unreadable monotonic clock. It is always fatal.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("monotonic clock unreadable: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// System reads CLOCK_MONOTONIC.
type System struct{}

func (System) Now() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, &Error{Err: err}
	}
	return time.Duration(ts.Nano()), nil
}

// Manual is a clock advanced by hand.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual(start time.Duration) *Manual { return &Manual{now: start} }

func (m *Manual) Now() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now, nil
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}

func (m *Manual) Set(now time.Duration) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
