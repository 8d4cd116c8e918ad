package services

import "time"

// Clock supplies the as-of instant for lifecycle operations.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}
