package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

func TestWeeklyReportJob_FirstRunOnlyBaselines(t *testing.T) {
	rec := enrolled("s1", "alice")
	rec.Rating = 1400
	rec.SolvedProblems = []student.SolvedProblem{{Key: "1A"}, {Key: "1B"}}

	repo := &fakeRepo{records: []*student.Record{rec}}
	gateway := &fakeGateway{}
	job := NewWeeklyReportJob(repo, gateway, nil)

	require.NoError(t, job.Run(context.Background()))

	// A fresh enrollment gets a baseline, not a report covering their
	// whole history.
	assert.Empty(t, gateway.reports)
	assert.Equal(t, 1400, rec.WeeklyBaseline.Rating)
	assert.Equal(t, 2, rec.WeeklyBaseline.TotalSolved)
	assert.False(t, rec.WeeklyBaseline.TakenAt.IsZero())

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Baselined)
	assert.Equal(t, 0, stats.Sent)
}

func TestWeeklyReportJob_SendsAndRollsBaseline(t *testing.T) {
	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)

	rec := enrolled("s1", "alice")
	rec.Rating = 1450
	rec.SolvedProblems = []student.SolvedProblem{{Key: "1A"}, {Key: "1B"}, {Key: "1C"}}
	rec.ContestHistory = []student.ContestResult{{ContestID: 1}, {ContestID: 2}}
	rec.WeeklyBaseline = student.Baseline{
		Rating:      1400,
		TotalSolved: 1,
		Contests:    1,
		TakenAt:     weekAgo,
	}

	repo := &fakeRepo{records: []*student.Record{rec}}
	gateway := &fakeGateway{}
	job := NewWeeklyReportJob(repo, gateway, nil)

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, gateway.reports, 1)
	report := gateway.reports[0]
	assert.Equal(t, "s1@example.com", report.Recipient)
	assert.Equal(t, weekAgo, report.PeriodStart)
	assert.Equal(t, 50, report.RatingChange)
	assert.Equal(t, 2, report.ProblemsSolved)
	assert.Equal(t, 1, report.ContestsPlayed)
	assert.Equal(t, 3, report.TotalSolved)

	// The baseline now reflects the state at send time.
	assert.Equal(t, 1450, rec.WeeklyBaseline.Rating)
	assert.Equal(t, 3, rec.WeeklyBaseline.TotalSolved)
	assert.True(t, rec.WeeklyBaseline.TakenAt.After(weekAgo))

	assert.Equal(t, 1, job.LastRunStats().Sent)
}

func TestWeeklyReportJob_FailedSendKeepsBaseline(t *testing.T) {
	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)

	rec := enrolled("s1", "alice")
	rec.WeeklyBaseline = student.Baseline{Rating: 1400, TakenAt: weekAgo}

	repo := &fakeRepo{records: []*student.Record{rec}}
	gateway := &fakeGateway{err: assert.AnError}
	job := NewWeeklyReportJob(repo, gateway, nil)

	require.NoError(t, job.Run(context.Background()))

	// The baseline did not move, so next week's report covers the same
	// period again.
	assert.Equal(t, weekAgo, rec.WeeklyBaseline.TakenAt)
	assert.Equal(t, 1, job.LastRunStats().Failed)
	assert.Equal(t, 0, repo.updates)
}

func TestWeeklyReportJob_SkipsOptedOutAndEmailless(t *testing.T) {
	optedOut := enrolled("s1", "alice")
	optedOut.EmailRemindersEnabled = false

	noEmail := enrolled("s2", "bob")
	noEmail.Email = ""

	repo := &fakeRepo{records: []*student.Record{optedOut, noEmail}}
	gateway := &fakeGateway{}
	job := NewWeeklyReportJob(repo, gateway, nil)

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, gateway.reports)
	assert.Equal(t, 0, job.LastRunStats().Total)
}
