package utils

import "time"

// Clock abstracts time.Now so timer-driven state machines (session auto-save,
// check-ins, staleness checks) can be driven by a simulated clock in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystemClock returns a Clock backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}
