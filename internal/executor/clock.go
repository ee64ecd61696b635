package executor

import "time"

// Clock abstracts time so retry backoff can be asserted in tests without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// systemClock is the production Clock, backed by the real time package.
type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the default Clock used outside of tests.
var SystemClock Clock = systemClock{}
