package types

import "time"

// Clock abstracts time for deterministic testing of time-dependent logic.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time, always in UTC.
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
