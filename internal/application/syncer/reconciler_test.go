package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

func intPtr(v int) *int { return &v }

func TestCollapseAccepted(t *testing.T) {
	t1 := timeutil.DateTime(2026, 1, 5, 10, 0, 0)
	t2 := timeutil.DateTime(2026, 1, 5, 11, 0, 0)

	subs := []student.Submission{
		// Two accepted submissions to the same problem, newest first as
		// the API returns them. The earliest one wins.
		{ID: 3, ContestID: 1750, Index: "A", ProblemName: "A", Verdict: "OK", SubmittedAt: t2},
		{ID: 2, ContestID: 1750, Index: "A", ProblemName: "A", Verdict: "OK", SubmittedAt: t1},
		{ID: 1, ContestID: 1750, Index: "B", ProblemName: "B", Verdict: "WRONG_ANSWER", SubmittedAt: t1},
		{ID: 4, ContestID: 1800, Index: "C", ProblemName: "C", Verdict: "OK", SubmittedAt: t2},
	}

	solves := CollapseAccepted(subs)

	require.Len(t, solves, 2, "rejected verdicts never become solves")
	assert.Equal(t, student.ProblemKey("1750A"), solves[0].Key)
	assert.Equal(t, t1, solves[0].FirstSolvedAt, "earliest accepted timestamp wins within a batch")
	assert.Equal(t, student.ProblemKey("1800C"), solves[1].Key)
}

func TestReconcile_Idempotent(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	now := timeutil.Date(2026, 2, 1)

	id := student.Identity{Handle: "tourist", Rating: 1500, Rank: "specialist"}
	contests := []student.ContestResult{
		{ContestID: 100, RatedAt: timeutil.Date(2026, 1, 10)},
	}
	subs := []student.Submission{
		{ID: 1, ContestID: 100, Index: "A", Verdict: "OK", SubmittedAt: timeutil.Date(2026, 1, 10)},
	}

	r := NewReconciler(nil)

	first := r.Reconcile(rec, id, contests, subs, now)
	assert.Equal(t, 1, first.ContestsAdded)
	assert.Equal(t, 1, first.ProblemsAdded)
	assert.True(t, first.ActivityAdvanced)

	second := r.Reconcile(rec, id, contests, subs, now.Add(time.Hour))
	assert.Equal(t, 0, second.ContestsAdded)
	assert.Equal(t, 0, second.ProblemsAdded)
	assert.False(t, second.ActivityAdvanced)

	assert.Len(t, rec.ContestHistory, 1)
	assert.Len(t, rec.SolvedProblems, 1)
}

func TestReconcile_PreservesFirstSolvedAtAcrossSyncs(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	r := NewReconciler(nil)

	early := timeutil.Date(2026, 1, 5)
	r.Reconcile(rec, student.Identity{}, nil, []student.Submission{
		{ID: 1, ContestID: 100, Index: "A", Verdict: "OK", SubmittedAt: early},
	}, timeutil.Date(2026, 1, 6))

	// A later sync sees only a newer accepted submission to the same
	// problem (the early one fell off the fetched page).
	r.Reconcile(rec, student.Identity{}, nil, []student.Submission{
		{ID: 9, ContestID: 100, Index: "A", Verdict: "OK", SubmittedAt: timeutil.Date(2026, 2, 20)},
	}, timeutil.Date(2026, 2, 21))

	require.Len(t, rec.SolvedProblems, 1)
	assert.Equal(t, early, rec.SolvedProblems[0].FirstSolvedAt)
}

func TestReconcile_ActivityFromContestsAndSolves(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	r := NewReconciler(nil)

	contestTime := timeutil.Date(2026, 1, 10)
	solveTime := timeutil.Date(2026, 1, 15)

	r.Reconcile(rec, student.Identity{},
		[]student.ContestResult{{ContestID: 100, RatedAt: contestTime}},
		[]student.Submission{
			{ID: 1, ContestID: 101, Index: "A", Verdict: "OK", SubmittedAt: solveTime},
			// Rejected submissions are not activity.
			{ID: 2, ContestID: 101, Index: "B", Verdict: "TIME_LIMIT_EXCEEDED", SubmittedAt: timeutil.Date(2026, 1, 20)},
		},
		timeutil.Date(2026, 2, 1),
	)

	assert.Equal(t, solveTime, rec.LastActivityAt)
}

func TestReconcile_RecomputesStats(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	r := NewReconciler(nil)
	now := timeutil.Date(2026, 1, 20)

	r.Reconcile(rec, student.Identity{}, nil, []student.Submission{
		{ID: 1, ContestID: 100, Index: "A", ProblemRating: intPtr(800), Verdict: "OK", SubmittedAt: timeutil.Date(2026, 1, 10)},
		{ID: 2, ContestID: 100, Index: "B", ProblemRating: intPtr(1200), Verdict: "OK", SubmittedAt: timeutil.Date(2026, 1, 11)},
	}, now)

	assert.Equal(t, 2, rec.Stats.TotalSolved)
	assert.Equal(t, 2, rec.Stats.SolvedLast30Days)
	assert.InDelta(t, 1000.0, rec.Stats.AverageRating, 0.001)
	assert.Equal(t, 1, rec.Stats.RatingBuckets[student.Bucket800to1000])
}
