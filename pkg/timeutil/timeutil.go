// Package timeutil provides time helpers for the progress tracker.
// All progress accounting (heatmaps, rolling windows, day arithmetic)
// is done in UTC, matching the Codeforces API timestamps.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// Date creates a UTC time for the given date at midnight.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time for the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the UTC calendar day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the UTC calendar day containing t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// StartOfWeek returns the start of the week (Monday) containing t, in UTC.
func StartOfWeek(t time.Time) time.Time {
	t = StartOfDay(t)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return t.AddDate(0, 0, -(weekday - 1))
}

// Common layouts used across the tracker.
const (
	// DayKeyLayout is the layout for activity heatmap day keys.
	DayKeyLayout = "2006-01-02"

	// TimestampLayout is the layout for human-readable timestamps in emails.
	TimestampLayout = "2006-01-02 15:04 UTC"
)

// DayKey returns the heatmap key for t: its UTC calendar date.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// FormatTimestamp formats t for human-readable output.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// IsSameDay reports whether t1 and t2 fall on the same UTC calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.UTC().Date()
	y2, m2, d2 := t2.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DaysBetween returns the number of whole UTC calendar days between t1 and t2.
// The result is negative when t2 is before t1.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	return int(d2.Sub(d1).Hours() / 24)
}

// WithinLastDays reports whether t falls within the last n days before now.
// The window is measured in exact durations, not calendar days.
func WithinLastDays(t, now time.Time, n int) bool {
	if t.After(now) {
		return true
	}
	return now.Sub(t) <= time.Duration(n)*24*time.Hour
}

// DaysSince returns the number of whole days elapsed from t to now.
// Returns 0 when t is in the future.
func DaysSince(t, now time.Time) int {
	if t.After(now) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// UnixSeconds converts a Unix timestamp in seconds to a UTC time.
func UnixSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
