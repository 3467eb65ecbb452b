// Package syncer reconciles fetched Codeforces data into student
// records. The reconciler is pure and deterministic; the service around
// it owns fetching and persistence.
package syncer

import (
	"log/slog"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILER
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileResult summarizes what one reconciliation changed.
type ReconcileResult struct {
	ContestsAdded    int
	ProblemsAdded    int
	ActivityAdvanced bool
}

// Reconciler folds a full fetch (identity, contest history, recent
// submissions) into a student record. Reconciling the same inputs
// twice is a no-op: merges are insert-only and snapshots are
// overwrites.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile applies a complete fetch to the record in memory.
// The caller persists the record afterwards; nothing here touches
// storage, so a failed persist leaves no partial state behind.
func (r *Reconciler) Reconcile(
	rec *student.Record,
	id student.Identity,
	contests []student.ContestResult,
	submissions []student.Submission,
	now time.Time,
) ReconcileResult {
	rec.ApplyIdentity(id, now)

	result := ReconcileResult{
		ContestsAdded: rec.MergeContests(contests),
		ProblemsAdded: rec.MergeSolves(CollapseAccepted(submissions)),
	}

	rec.RecomputeStats(now)

	if latest := latestActivity(contests, submissions); !latest.IsZero() {
		result.ActivityAdvanced = rec.AdvanceActivity(latest)
	}

	r.logger.Debug("record reconciled",
		"student_id", rec.ID,
		"handle", rec.Handle.String(),
		"contests_added", result.ContestsAdded,
		"problems_added", result.ProblemsAdded,
		"activity_advanced", result.ActivityAdvanced,
	)

	return result
}

// CollapseAccepted reduces a submission batch to one solved problem per
// problem key, keeping only accepted verdicts and the earliest accepted
// timestamp within the batch.
func CollapseAccepted(submissions []student.Submission) []student.SolvedProblem {
	byKey := make(map[student.ProblemKey]student.SolvedProblem)
	order := make([]student.ProblemKey, 0)

	for _, sub := range submissions {
		if !sub.Verdict.IsAccepted() {
			continue
		}
		key := sub.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = student.SolvedProblem{
				Key:           key,
				Name:          sub.ProblemName,
				Rating:        sub.ProblemRating,
				FirstSolvedAt: sub.SubmittedAt,
			}
			order = append(order, key)
			continue
		}
		if sub.SubmittedAt.Before(existing.FirstSolvedAt) {
			existing.FirstSolvedAt = sub.SubmittedAt
			byKey[key] = existing
		}
	}

	solves := make([]student.SolvedProblem, 0, len(order))
	for _, key := range order {
		solves = append(solves, byKey[key])
	}
	return solves
}

// latestActivity finds the most recent contest or accepted submission
// timestamp in the fetched batch.
func latestActivity(contests []student.ContestResult, submissions []student.Submission) time.Time {
	var latest time.Time
	for _, c := range contests {
		if c.RatedAt.After(latest) {
			latest = c.RatedAt
		}
	}
	for _, s := range submissions {
		if s.Verdict.IsAccepted() && s.SubmittedAt.After(latest) {
			latest = s.SubmittedAt
		}
	}
	return latest
}
