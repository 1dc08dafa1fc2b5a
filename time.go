package identity

import "time"

// IsWithinWindow reports whether t is strictly newer than now minus window.
func IsWithinWindow(t time.Time, window time.Duration, now time.Time) bool {
	return t.After(now.Add(-window))
}

// hasPassed reports whether now is at or past deadline.
func hasPassed(deadline, now time.Time) bool {
	return !now.Before(deadline)
}
