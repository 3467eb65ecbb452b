package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/notification"
	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY REPORT JOB
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyReportStats summarizes one weekly report run.
type WeeklyReportStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Total       int
	Sent        int
	Failed      int
	Baselined   int // students who only got a baseline this run
}

// WeeklyReportJob emails every opted-in student a summary of their
// progress since the last report and rolls the baseline forward.
//
// A student without a baseline (fresh enrollment) gets one silently:
// the first report would otherwise cover their entire history.
type WeeklyReportJob struct {
	repo    student.Repository
	gateway notification.Gateway
	logger  *slog.Logger

	lastRunStats atomic.Value // *WeeklyReportStats
}

// NewWeeklyReportJob creates the weekly report job.
func NewWeeklyReportJob(repo student.Repository, gateway notification.Gateway, logger *slog.Logger) *WeeklyReportJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeeklyReportJob{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
	}
}

// Name returns the job name.
func (j *WeeklyReportJob) Name() string {
	return "weekly_report"
}

// Description returns the job description.
func (j *WeeklyReportJob) Description() string {
	return "Emails weekly progress reports and rolls baselines forward"
}

// Run executes the weekly report.
func (j *WeeklyReportJob) Run(ctx context.Context) error {
	now := timeutil.Now()
	stats := &WeeklyReportStats{StartedAt: now}
	defer func() {
		stats.CompletedAt = timeutil.Now()
		j.lastRunStats.Store(stats)
	}()

	roster, err := j.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	j.logger.Info("weekly report started", "students", len(roster))

	for _, rec := range roster {
		if ctx.Err() != nil {
			break
		}
		if !rec.EmailRemindersEnabled || rec.Email == "" {
			continue
		}
		stats.Total++

		if err := j.reportOne(ctx, rec, now, stats); err != nil {
			stats.Failed++
			j.logger.Error("weekly report failed",
				"student_id", rec.ID,
				"handle", rec.Handle.String(),
				"error", err,
			)
		}
	}

	j.logger.Info("weekly report completed",
		"total", stats.Total,
		"sent", stats.Sent,
		"failed", stats.Failed,
		"baselined", stats.Baselined,
		"duration", time.Since(stats.StartedAt).String(),
	)

	return nil
}

// reportOne sends one student's report and rolls their baseline.
// The baseline moves only after a successful send so a failed delivery
// is retried with the same period next week.
func (j *WeeklyReportJob) reportOne(ctx context.Context, rec *student.Record, now time.Time, stats *WeeklyReportStats) error {
	baseline := rec.WeeklyBaseline

	if baseline.TakenAt.IsZero() {
		rec.RollBaseline(now)
		if err := j.repo.Update(ctx, rec); err != nil {
			return fmt.Errorf("establish baseline: %w", err)
		}
		stats.Baselined++
		return nil
	}

	report := notification.WeeklyReport{
		Recipient:      rec.Email,
		StudentName:    rec.Name,
		Handle:         rec.Handle.String(),
		PeriodStart:    baseline.TakenAt,
		PeriodEnd:      now,
		RatingChange:   int(rec.Rating) - baseline.Rating,
		CurrentRating:  int(rec.Rating),
		ProblemsSolved: len(rec.SolvedProblems) - baseline.TotalSolved,
		ContestsPlayed: len(rec.ContestHistory) - baseline.Contests,
		TotalSolved:    len(rec.SolvedProblems),
	}

	if err := j.gateway.SendWeeklyReport(ctx, report); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	rec.RollBaseline(now)
	if err := j.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("roll baseline: %w", err)
	}

	stats.Sent++
	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *WeeklyReportJob) LastRunStats() *WeeklyReportStats {
	stats, _ := j.lastRunStats.Load().(*WeeklyReportStats)
	return stats
}
