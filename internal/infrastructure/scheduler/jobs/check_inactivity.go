package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cf-hub/progress-tracker/internal/application/inactivity"
	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INACTIVITY CHECK JOB
// ══════════════════════════════════════════════════════════════════════════════

// InactivityStats summarizes one inactivity check run.
type InactivityStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Checked     int
	Reminded    int
	Failed      int
	SkippedBy   map[inactivity.Reason]int
}

// CheckInactivityJob finds students past the inactivity threshold and
// lets the inactivity engine decide per student. The repository query
// is only a prefilter; the engine re-applies the full policy
// (opt-out, cooldown, cap) before anything is sent.
type CheckInactivityJob struct {
	engine *inactivity.Engine
	repo   student.Repository
	config inactivity.Config
	logger *slog.Logger

	lastRunStats atomic.Value // *InactivityStats
}

// NewCheckInactivityJob creates the inactivity check job.
func NewCheckInactivityJob(engine *inactivity.Engine, repo student.Repository, config inactivity.Config, logger *slog.Logger) *CheckInactivityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckInactivityJob{
		engine: engine,
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Name returns the job name.
func (j *CheckInactivityJob) Name() string {
	return "check_inactivity"
}

// Description returns the job description.
func (j *CheckInactivityJob) Description() string {
	return "Sends reminder emails to students past the inactivity threshold"
}

// Run executes the inactivity check.
func (j *CheckInactivityJob) Run(ctx context.Context) error {
	now := timeutil.Now()
	stats := &InactivityStats{
		StartedAt: now,
		SkippedBy: make(map[inactivity.Reason]int),
	}
	defer func() {
		stats.CompletedAt = timeutil.Now()
		j.lastRunStats.Store(stats)
	}()

	cutoff := now.Add(-j.config.Threshold)
	candidates, err := j.repo.GetInactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("load inactive students: %w", err)
	}

	j.logger.Info("inactivity check started", "candidates", len(candidates))

	for _, rec := range candidates {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++

		eval, err := j.engine.Process(ctx, rec, timeutil.Now())
		if err != nil {
			stats.Failed++
			j.logger.Error("reminder processing failed",
				"student_id", rec.ID,
				"handle", rec.Handle.String(),
				"error", err,
			)
			continue
		}

		if eval.Decision == inactivity.DecisionRemind {
			stats.Reminded++
		} else {
			stats.SkippedBy[eval.Reason]++
		}
	}

	j.logger.Info("inactivity check completed",
		"checked", stats.Checked,
		"reminded", stats.Reminded,
		"failed", stats.Failed,
		"duration", time.Since(stats.StartedAt).String(),
	)

	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *CheckInactivityJob) LastRunStats() *InactivityStats {
	stats, _ := j.lastRunStats.Load().(*InactivityStats)
	return stats
}
