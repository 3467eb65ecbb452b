package scheduler

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every creates an interval schedule.
func Every(d time.Duration) IntervalSchedule {
	return IntervalSchedule{Interval: d}
}

// Next returns the next run time after t.
func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns a human-readable representation.
func (s IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.Interval)
}

// DailySchedule runs a job once a day at a fixed wall-clock time.
type DailySchedule struct {
	Hour   int
	Minute int
}

// DailyAt creates a daily schedule, e.g. DailyAt(9, 0) for 09:00.
func DailyAt(hour, minute int) DailySchedule {
	return DailySchedule{Hour: hour, Minute: minute}
}

// Next returns the next occurrence of the wall-clock time after t,
// in t's location.
func (s DailySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns a human-readable representation.
func (s DailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
}

// WeeklySchedule runs a job once a week on a fixed weekday and time.
type WeeklySchedule struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// WeeklyAt creates a weekly schedule, e.g. WeeklyAt(time.Monday, 10, 0).
func WeeklyAt(weekday time.Weekday, hour, minute int) WeeklySchedule {
	return WeeklySchedule{Weekday: weekday, Hour: hour, Minute: minute}
}

// Next returns the next occurrence of the weekday and wall-clock time
// after t, in t's location.
func (s WeeklySchedule) Next(t time.Time) time.Time {
	daysAhead := (int(s.Weekday) - int(t.Weekday()) + 7) % 7
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

// String returns a human-readable representation.
func (s WeeklySchedule) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d", s.Weekday, s.Hour, s.Minute)
}
