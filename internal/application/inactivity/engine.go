// Package inactivity decides when an inactive student gets a reminder
// email and dispatches it. The decision is pure; dispatch and state
// advancement are strictly ordered so a failed send never burns a slot
// in the reminder window.
package inactivity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/notification"
	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECISION MODEL
// ══════════════════════════════════════════════════════════════════════════════

// Decision is the outcome of evaluating one student.
type Decision int

const (
	// DecisionSkip means no reminder should go out this cycle.
	DecisionSkip Decision = iota
	// DecisionRemind means a reminder is due.
	DecisionRemind
)

// Reason explains a decision.
type Reason string

const (
	// ReasonDue - the student is inactive and a reminder is due.
	ReasonDue Reason = "due"
	// ReasonOptedOut - the student disabled reminder emails.
	ReasonOptedOut Reason = "opted_out"
	// ReasonActive - the student was active within the threshold.
	ReasonActive Reason = "active"
	// ReasonCooldown - a reminder went out too recently.
	ReasonCooldown Reason = "cooldown"
	// ReasonCapReached - the student hit the reminder cap for this
	// inactivity stretch.
	ReasonCapReached Reason = "cap_reached"
)

// Evaluation is a decision plus its supporting facts.
type Evaluation struct {
	Decision    Decision
	Reason      Reason
	InactiveFor time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the reminder policy knobs.
type Config struct {
	// Threshold is how long a student must be inactive before
	// reminders start.
	Threshold time.Duration

	// Cooldown is the minimum gap between two reminders to the same
	// student.
	Cooldown time.Duration

	// Cap is the maximum number of reminders per inactivity stretch.
	// Zero means unbounded.
	Cap int
}

// DefaultConfig returns the standard policy: remind after a week of
// silence, at most once a week, at most three times.
func DefaultConfig() Config {
	return Config{
		Threshold: 7 * 24 * time.Hour,
		Cooldown:  7 * 24 * time.Hour,
		Cap:       3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// CacheInvalidator drops cached read snapshots after a write.
type CacheInvalidator interface {
	InvalidateStudent(ctx context.Context, rec *student.Record) error
}

// Engine evaluates and processes inactivity reminders.
type Engine struct {
	config  Config
	gateway notification.Gateway
	repo    student.Repository
	cache   CacheInvalidator // optional
	logger  *slog.Logger
}

// NewEngine creates a new inactivity engine. cache may be nil.
func NewEngine(config Config, gateway notification.Gateway, repo student.Repository, cache CacheInvalidator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:  config,
		gateway: gateway,
		repo:    repo,
		cache:   cache,
		logger:  logger,
	}
}

// Evaluate decides whether rec should receive a reminder as of now.
// Pure: no I/O, no mutation.
func (e *Engine) Evaluate(rec *student.Record, now time.Time) Evaluation {
	inactive := rec.InactiveFor(now)

	if !rec.EmailRemindersEnabled {
		return Evaluation{DecisionSkip, ReasonOptedOut, inactive}
	}

	// Strictly more than the threshold: a student exactly at the
	// boundary is not yet inactive.
	if inactive <= e.config.Threshold {
		return Evaluation{DecisionSkip, ReasonActive, inactive}
	}

	if !rec.LastReminderSentAt.IsZero() && now.Sub(rec.LastReminderSentAt) < e.config.Cooldown {
		return Evaluation{DecisionSkip, ReasonCooldown, inactive}
	}

	if e.config.Cap > 0 && rec.ReminderCount >= e.config.Cap {
		return Evaluation{DecisionSkip, ReasonCapReached, inactive}
	}

	return Evaluation{DecisionRemind, ReasonDue, inactive}
}

// Process evaluates rec and, when a reminder is due, dispatches it and
// advances the reminder state.
//
// Dispatch happens before any state change. If the gateway fails, the
// record is untouched and the student stays eligible next cycle. If the
// gateway succeeds but persisting fails, the worst case is one
// duplicate reminder after a crash - the acceptable side of that
// trade-off.
func (e *Engine) Process(ctx context.Context, rec *student.Record, now time.Time) (Evaluation, error) {
	eval := e.Evaluate(rec, now)
	if eval.Decision != DecisionRemind {
		return eval, nil
	}

	payload := notification.ReminderPayload{
		Recipient:      rec.Email,
		StudentName:    rec.Name,
		Handle:         rec.Handle.String(),
		LastActivityAt: rec.LastActivityAt,
		InactiveDays:   int(eval.InactiveFor.Hours() / 24),
		CurrentRating:  int(rec.Rating),
	}

	if err := e.gateway.SendReminder(ctx, payload); err != nil {
		return eval, fmt.Errorf("send reminder to %s: %w", rec.Email, err)
	}

	rec.RecordReminder(now)

	if err := e.repo.Update(ctx, rec); err != nil {
		return eval, fmt.Errorf("persist reminder state for %s: %w", rec.ID, err)
	}

	e.invalidate(ctx, rec)

	e.logger.Info("reminder sent",
		"student_id", rec.ID,
		"handle", rec.Handle.String(),
		"inactive_days", payload.InactiveDays,
		"reminder_count", rec.ReminderCount,
	)

	return eval, nil
}

func (e *Engine) invalidate(ctx context.Context, rec *student.Record) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateStudent(ctx, rec); err != nil {
		e.logger.Warn("cache invalidation failed",
			"student_id", rec.ID,
			"error", err,
		)
	}
}
