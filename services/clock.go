package services

import "time"

// Clock is the time source for lock expiry and timestamps.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}
