// Package notification defines the outbound notification port and its
// payloads. Delivery transports (SMTP today) implement Gateway in the
// infrastructure layer.
package notification

import (
	"context"
	"time"
)

// ReminderPayload carries everything a reminder message needs.
// The gateway owns formatting; callers only supply facts.
type ReminderPayload struct {
	Recipient      string
	StudentName    string
	Handle         string
	LastActivityAt time.Time
	InactiveDays   int
	CurrentRating  int
}

// WeeklyReport carries one student's progress since the last baseline.
type WeeklyReport struct {
	Recipient      string
	StudentName    string
	Handle         string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	RatingChange   int
	CurrentRating  int
	ProblemsSolved int
	ContestsPlayed int
	TotalSolved    int
}

// Gateway delivers notifications to students. Implementations must be
// safe for concurrent use. Delivery is at-most-once from the caller's
// point of view: an error means the message may not have arrived and
// the caller must not advance reminder state.
type Gateway interface {
	SendReminder(ctx context.Context, p ReminderPayload) error
	SendWeeklyReport(ctx context.Context, r WeeklyReport) error
}
