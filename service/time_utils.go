package service

import (
	"time"
)

// Clock returns the current time. Services compare deadlines against it.
type Clock func() time.Time

// SystemClock returns the wall clock time in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

func clockOrDefault(clock Clock) Clock {
	if clock == nil {
		return SystemClock
	}
	return clock
}
