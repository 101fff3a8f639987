package types

import "time"

// DateOnly truncates a timestamp to midnight UTC. All billing math in this
// system is day-granular, so dates are normalized before any comparison.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BeginningOfMonth returns the first day of t's calendar month
func BeginningOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last day of t's calendar month
func EndOfMonth(t time.Time) time.Time {
	return BeginningOfMonth(t).AddDate(0, 1, -1)
}

// DaysInMonth returns the number of days in t's calendar month
func DaysInMonth(t time.Time) int {
	return EndOfMonth(t).Day()
}

// DaysBetweenInclusive counts calendar days from a to b, both ends included.
// Returns 0 when b is before a.
func DaysBetweenInclusive(a, b time.Time) int {
	a, b = DateOnly(a), DateOnly(b)
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// AddClampedDate adds years, months and days to t, clamping the day of month
// to the last valid day instead of letting time.AddDate roll over.
// For example Jan 31 plus one month lands on Feb 28/29 rather than Mar 2/3.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// MinDate returns the earlier of a and b
func MinDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of a and b
func MaxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
