// Package jobs contains the scheduled jobs of the progress tracker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cf-hub/progress-tracker/internal/application/syncer"
	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/internal/infrastructure/external/codeforces"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER SYNC JOB
// ══════════════════════════════════════════════════════════════════════════════

// StudentSyncer runs the fetch-reconcile-persist cycle for one student.
type StudentSyncer interface {
	SyncOne(ctx context.Context, rec *student.Record) (syncer.ReconcileResult, error)
}

// RunJournal persists run summaries for later inspection. Optional.
type RunJournal interface {
	RecordSyncRun(ctx context.Context, stats SyncRosterStats) error
}

// SyncRosterConfig configures the roster sync job.
type SyncRosterConfig struct {
	// Concurrency bounds the number of students synced in parallel.
	// The API client paces requests globally either way, so the
	// default is 1; raising it only overlaps reconcile/persist work.
	Concurrency int

	// MaxFailureRate fails the whole run when exceeded.
	MaxFailureRate float64
}

// DefaultSyncRosterConfig returns sensible defaults.
func DefaultSyncRosterConfig() SyncRosterConfig {
	return SyncRosterConfig{
		Concurrency:    1,
		MaxFailureRate: 0.5,
	}
}

// SyncRosterStats summarizes one roster sync run.
type SyncRosterStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Total         int
	Synced        int
	Failed        int
	Skipped       int // handles not found upstream
	ContestsAdded int
	ProblemsAdded int
	Errors        []SyncError
}

// SyncError records one per-student failure.
type SyncError struct {
	StudentID string
	Handle    string
	Message   string
}

// SyncRosterJob syncs every enrolled student against the upstream API.
// One student failing never stops the others; the run itself fails only
// when more than MaxFailureRate of the roster failed, which usually
// means the upstream is down rather than the students are gone.
type SyncRosterJob struct {
	syncer  StudentSyncer
	repo    student.Repository
	journal RunJournal // optional
	config  SyncRosterConfig
	logger  *slog.Logger

	lastRunStats atomic.Value // *SyncRosterStats
}

// NewSyncRosterJob creates the roster sync job.
func NewSyncRosterJob(s StudentSyncer, repo student.Repository, config SyncRosterConfig, logger *slog.Logger) *SyncRosterJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxFailureRate <= 0 {
		config.MaxFailureRate = 0.5
	}
	return &SyncRosterJob{
		syncer: s,
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// WithJournal attaches a run journal and returns the job.
func (j *SyncRosterJob) WithJournal(journal RunJournal) *SyncRosterJob {
	j.journal = journal
	return j
}

// Name returns the job name.
func (j *SyncRosterJob) Name() string {
	return "sync_roster"
}

// Description returns the job description.
func (j *SyncRosterJob) Description() string {
	return "Syncs every enrolled student's Codeforces progress"
}

// Run executes the roster sync.
func (j *SyncRosterJob) Run(ctx context.Context) error {
	stats := &SyncRosterStats{StartedAt: timeutil.Now()}
	defer func() {
		stats.CompletedAt = timeutil.Now()
		j.lastRunStats.Store(stats)

		if j.journal != nil {
			if err := j.journal.RecordSyncRun(ctx, *stats); err != nil {
				j.logger.Warn("failed to journal sync run", "error", err)
			}
		}
	}()

	roster, err := j.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	stats.Total = len(roster)

	j.logger.Info("roster sync started", "students", stats.Total)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, j.config.Concurrency)

	for _, rec := range roster {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(rec *student.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := j.syncer.SyncOne(ctx, rec)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				stats.Synced++
				stats.ContestsAdded += result.ContestsAdded
				stats.ProblemsAdded += result.ProblemsAdded
			case codeforces.IsNotFound(err):
				// A vanished handle is the student's problem, not the
				// run's. Skip and keep the stored record as is.
				stats.Skipped++
				j.logger.Warn("handle not found upstream",
					"student_id", rec.ID,
					"handle", rec.Handle.String(),
				)
			default:
				stats.Failed++
				stats.Errors = append(stats.Errors, SyncError{
					StudentID: rec.ID,
					Handle:    rec.Handle.String(),
					Message:   err.Error(),
				})
				j.logger.Error("student sync failed",
					"student_id", rec.ID,
					"handle", rec.Handle.String(),
					"error", err,
				)
			}
		}(rec)
	}

	wg.Wait()

	j.logger.Info("roster sync completed",
		"total", stats.Total,
		"synced", stats.Synced,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"contests_added", stats.ContestsAdded,
		"problems_added", stats.ProblemsAdded,
		"duration", time.Since(stats.StartedAt).String(),
	)

	if stats.Total > 0 {
		failureRate := float64(stats.Failed) / float64(stats.Total)
		if failureRate > j.config.MaxFailureRate {
			return fmt.Errorf("roster sync failed for %d of %d students (%.0f%%)",
				stats.Failed, stats.Total, failureRate*100)
		}
	}

	return nil
}

// LastRunStats returns statistics from the most recent run, or nil.
func (j *SyncRosterJob) LastRunStats() *SyncRosterStats {
	stats, _ := j.lastRunStats.Load().(*SyncRosterStats)
	return stats
}
