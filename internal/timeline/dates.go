package timeline

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// CalendarDay reduces t to its year-month-day as seen in t's own location and
// returns that day at UTC midnight. Two instants carrying the same calendar
// date in different offsets map to the same day.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayDiff returns the number of whole calendar days from b to a.
func DayDiff(a, b time.Time) int {
	return int(CalendarDay(a).Sub(CalendarDay(b)).Hours() / 24)
}

// ParseDate reads a calendar date. It accepts a plain YYYY-MM-DD or any value
// starting with one (RFC 3339 timestamps, "2026-02-20 08:00:00"); time of day
// and offset are ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	d, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// FormatDate renders the calendar date of t.
func FormatDate(t time.Time) string {
	return CalendarDay(t).Format(DateLayout)
}
