package utils

import "time"

// DayLayout is the canonical calendar-day form used everywhere day
// granularity matters (streaks, schedules). Times are truncated to their
// UTC date component, never shifted into a user timezone.
const DayLayout = "2006-01-02"

// DayKey truncates an instant to its calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDayKey validates a YYYY-MM-DD string.
func ParseDayKey(s string) (time.Time, error) {
	return time.Parse(DayLayout, s)
}

// StartOfDay returns midnight UTC of the instant's calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// DaysUntil returns the number of days from `from` until `to`, rounded up.
// Zero or negative means `to` is not in the future.
func DaysUntil(from, to time.Time) int {
	diff := to.Sub(from)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}
