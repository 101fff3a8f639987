package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, 3, 15, 13, 45, 12, 999, time.FixedZone("CET", 3600))
	assert.Equal(t, date(2024, 3, 15), DateOnly(ts))
}

func TestBeginningAndEndOfMonth(t *testing.T) {
	assert.Equal(t, date(2024, 2, 1), BeginningOfMonth(date(2024, 2, 17)))
	assert.Equal(t, date(2024, 2, 29), EndOfMonth(date(2024, 2, 17)))
	assert.Equal(t, date(2023, 2, 28), EndOfMonth(date(2023, 2, 1)))
	assert.Equal(t, date(2024, 12, 31), EndOfMonth(date(2024, 12, 5)))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(date(2024, 2, 10)))
	assert.Equal(t, 28, DaysInMonth(date(2023, 2, 10)))
	assert.Equal(t, 31, DaysInMonth(date(2024, 1, 1)))
	assert.Equal(t, 30, DaysInMonth(date(2024, 4, 30)))
}

func TestDaysBetweenInclusive(t *testing.T) {
	assert.Equal(t, 1, DaysBetweenInclusive(date(2024, 1, 1), date(2024, 1, 1)))
	assert.Equal(t, 31, DaysBetweenInclusive(date(2024, 1, 1), date(2024, 1, 31)))
	assert.Equal(t, 17, DaysBetweenInclusive(date(2024, 1, 15), date(2024, 1, 31)))
	assert.Equal(t, 0, DaysBetweenInclusive(date(2024, 1, 2), date(2024, 1, 1)))
}

func TestAddClampedDate(t *testing.T) {
	// Jan 31 plus one month clamps to the end of February
	assert.Equal(t, date(2024, 2, 29), AddClampedDate(date(2024, 1, 31), 0, 1, 0))
	assert.Equal(t, date(2023, 2, 28), AddClampedDate(date(2023, 1, 31), 0, 1, 0))

	assert.Equal(t, date(2024, 4, 15), AddClampedDate(date(2024, 1, 15), 0, 3, 0))
	assert.Equal(t, date(2025, 1, 31), AddClampedDate(date(2024, 1, 31), 1, 0, 0))

	// month arithmetic crosses year boundaries
	assert.Equal(t, date(2025, 2, 28), AddClampedDate(date(2024, 11, 30), 0, 3, 0))
}

func TestMinMaxDate(t *testing.T) {
	a, b := date(2024, 1, 1), date(2024, 6, 1)
	assert.Equal(t, a, MinDate(a, b))
	assert.Equal(t, a, MinDate(b, a))
	assert.Equal(t, b, MaxDate(a, b))
	assert.Equal(t, b, MaxDate(b, a))
}
