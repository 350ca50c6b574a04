package testutil

import (
	"time"

	"github.com/juju/clock/testclock"
)

// Epoch is the start time of every test clock.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewClock returns a test clock set to Epoch.
func NewClock() *testclock.Clock {
	return testclock.NewClock(Epoch)
}

// At returns Epoch plus d.
func At(d time.Duration) time.Time {
	return Epoch.Add(d)
}

// Ms is shorthand for n milliseconds.
func Ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
