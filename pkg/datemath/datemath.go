package datemath

import "time"

// DateFormat is the canonical date string used across the engine.
const DateFormat = "2006-01-02"

// DateOnly strips the time-of-day and timezone from t, returning midnight UTC
// of the same calendar date. All date arithmetic in the engine goes through
// this so that subtraction of two dates is exact calendar-day arithmetic.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Format renders t as the canonical YYYY-MM-DD string.
func Format(t time.Time) string {
	return t.Format(DateFormat)
}

// Parse parses a canonical YYYY-MM-DD string into a midnight-UTC date.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ISOWeekday returns the ISO day of week: Monday=1 .. Sunday=7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// WeekOfMonth returns the 1-based week of the month (1..5), where days 1-7
// are week 1, days 8-14 week 2, and so on.
func WeekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// IsWeekday reports whether t falls on Monday through Friday.
func IsWeekday(t time.Time) bool {
	return ISOWeekday(t) <= 5
}

// AddDays returns the date n calendar days after t (negative n goes back).
func AddDays(t time.Time, n int) time.Time {
	return DateOnly(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (b - a).
// Both arguments are normalized first, so time-of-day and timezone never
// leak into the result.
func DaysBetween(a, b time.Time) int {
	da := DateOnly(a)
	db := DateOnly(b)
	return int(db.Sub(da).Hours() / 24)
}

// Range returns every date from from to to inclusive. An inverted range
// yields an empty slice.
func Range(from, to time.Time) []time.Time {
	from = DateOnly(from)
	to = DateOnly(to)
	if from.After(to) {
		return nil
	}
	days := make([]time.Time, 0, DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// FloorDiv divides a by b rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// PosMod returns a mod b normalized into [0, b).
func PosMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
