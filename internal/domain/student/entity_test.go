package student

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

func TestHandle_IsValid(t *testing.T) {
	assert.True(t, Handle("tourist").IsValid())
	assert.True(t, Handle("Benq_2.0-x").IsValid())
	assert.True(t, Handle("abc").IsValid())

	assert.False(t, Handle("ab").IsValid(), "too short")
	assert.False(t, Handle("a123456789012345678901234").IsValid(), "too long")
	assert.False(t, Handle("with space").IsValid())
	assert.False(t, Handle("кириллица").IsValid())
	assert.False(t, Handle("").IsValid())
}

func TestHandle_Normalized(t *testing.T) {
	assert.Equal(t, Handle("tourist"), Handle("Tourist").Normalized())
}

func TestMakeProblemKey(t *testing.T) {
	assert.Equal(t, ProblemKey("1750A"), MakeProblemKey(1750, "A"))
	assert.Equal(t, ProblemKey("102B1"), MakeProblemKey(102, "B1"))
}

func TestNewRecord(t *testing.T) {
	now := timeutil.Date(2026, 1, 10)

	rec, err := NewRecord(NewRecordParams{
		Handle: "tourist",
		Name:   "Gennady",
		Email:  "Gennady@Example.com",
	}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "gennady@example.com", rec.Email, "email is stored lowercased")
	assert.Equal(t, RankUnrated, rec.Rank)
	assert.True(t, rec.EmailRemindersEnabled, "reminders are opt-out")
	assert.Equal(t, now, rec.CreatedAt)
	assert.True(t, rec.LastActivityAt.IsZero())
}

func TestNewRecord_Validation(t *testing.T) {
	now := timeutil.Now()

	_, err := NewRecord(NewRecordParams{Handle: "x", Name: "A", Email: "a@b.com"}, now)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = NewRecord(NewRecordParams{Handle: "tourist", Name: "  ", Email: "a@b.com"}, now)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewRecord(NewRecordParams{Handle: "tourist", Name: "A", Email: "not-an-email"}, now)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewRecord(NewRecordParams{Handle: "tourist", Name: "A", Email: "a@nodot"}, now)
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestApplyIdentity(t *testing.T) {
	rec := &Record{Handle: "tourist"}
	now := timeutil.Date(2026, 2, 1)

	rec.ApplyIdentity(Identity{
		Handle:    "tourist",
		Rating:    3800,
		MaxRating: 3979,
		Rank:      "legendary grandmaster",
		MaxRank:   "legendary grandmaster",
	}, now)

	assert.Equal(t, Rating(3800), rec.Rating)
	assert.Equal(t, now, rec.LastSyncedAt)

	// A profile with no rank yet falls back to the unrated title.
	rec.ApplyIdentity(Identity{Handle: "tourist"}, now)
	assert.Equal(t, RankUnrated, rec.Rank)
	assert.Equal(t, RankUnrated, rec.MaxRank)
}

func TestMergeContests_Idempotent(t *testing.T) {
	rec := &Record{}
	contests := []ContestResult{
		{ContestID: 100, RatedAt: timeutil.Date(2026, 1, 5)},
		{ContestID: 101, RatedAt: timeutil.Date(2026, 1, 12)},
	}

	assert.Equal(t, 2, rec.MergeContests(contests))
	assert.Equal(t, 0, rec.MergeContests(contests), "re-merging the same fetch adds nothing")
	assert.Len(t, rec.ContestHistory, 2)
}

func TestMergeContests_KeepsExistingEntries(t *testing.T) {
	rec := &Record{ContestHistory: []ContestResult{
		{ContestID: 100, Rank: 42, RatedAt: timeutil.Date(2026, 1, 5)},
	}}

	// The upstream now reports a different rank for the same contest.
	// The stored entry wins.
	added := rec.MergeContests([]ContestResult{
		{ContestID: 100, Rank: 99, RatedAt: timeutil.Date(2026, 1, 5)},
	})

	assert.Equal(t, 0, added)
	assert.Equal(t, 42, rec.ContestHistory[0].Rank)
}

func TestMergeContests_SortsByTime(t *testing.T) {
	rec := &Record{ContestHistory: []ContestResult{
		{ContestID: 101, RatedAt: timeutil.Date(2026, 1, 12)},
	}}

	rec.MergeContests([]ContestResult{
		{ContestID: 100, RatedAt: timeutil.Date(2026, 1, 5)},
	})

	require.Len(t, rec.ContestHistory, 2)
	assert.Equal(t, 100, rec.ContestHistory[0].ContestID)
	assert.Equal(t, 101, rec.ContestHistory[1].ContestID)
}

func TestMergeSolves_FirstSolvedAtIsImmutable(t *testing.T) {
	first := timeutil.Date(2026, 1, 5)
	rec := &Record{SolvedProblems: []SolvedProblem{
		{Key: "1750A", Name: "A", FirstSolvedAt: first},
	}}

	added := rec.MergeSolves([]SolvedProblem{
		{Key: "1750A", Name: "A", FirstSolvedAt: timeutil.Date(2026, 1, 20)},
		{Key: "1750B", Name: "B", FirstSolvedAt: timeutil.Date(2026, 1, 21)},
	})

	assert.Equal(t, 1, added)
	require.Len(t, rec.SolvedProblems, 2)
	assert.Equal(t, first, rec.SolvedProblems[0].FirstSolvedAt)
}

func TestAdvanceActivity(t *testing.T) {
	rec := &Record{ReminderCount: 2}
	t1 := timeutil.Date(2026, 3, 1)

	assert.True(t, rec.AdvanceActivity(t1))
	assert.Equal(t, t1, rec.LastActivityAt)
	assert.Equal(t, 0, rec.ReminderCount, "new activity resets the capped counter")

	rec.ReminderCount = 1
	assert.False(t, rec.AdvanceActivity(t1), "equal timestamp does not move")
	assert.False(t, rec.AdvanceActivity(t1.Add(-time.Hour)), "earlier timestamp does not move")
	assert.Equal(t, 1, rec.ReminderCount, "no movement, no reset")
}

func TestRecordReminder(t *testing.T) {
	rec := &Record{ReminderEmailsSent: 5}
	now := timeutil.Date(2026, 3, 15)

	rec.RecordReminder(now)

	assert.Equal(t, 6, rec.ReminderEmailsSent)
	assert.Equal(t, 1, rec.ReminderCount)
	assert.Equal(t, now, rec.LastReminderSentAt)

	// Activity resets only the capped counter. The lifetime counter
	// keeps its history.
	rec.AdvanceActivity(now.Add(time.Hour))
	assert.Equal(t, 6, rec.ReminderEmailsSent)
	assert.Equal(t, 0, rec.ReminderCount)
}

func TestInactiveFor(t *testing.T) {
	created := timeutil.Date(2026, 1, 1)
	now := timeutil.Date(2026, 1, 11)

	rec := &Record{CreatedAt: created}
	assert.Equal(t, 10*24*time.Hour, rec.InactiveFor(now), "no activity yet counts from enrollment")

	rec.LastActivityAt = timeutil.Date(2026, 1, 8)
	assert.Equal(t, 3*24*time.Hour, rec.InactiveFor(now))
}

func TestRollBaseline(t *testing.T) {
	rec := &Record{
		Rating:         1500,
		SolvedProblems: []SolvedProblem{{Key: "1A"}, {Key: "1B"}},
		ContestHistory: []ContestResult{{ContestID: 1}},
	}
	now := timeutil.Date(2026, 4, 6)

	rec.RollBaseline(now)

	assert.Equal(t, 1500, rec.WeeklyBaseline.Rating)
	assert.Equal(t, 2, rec.WeeklyBaseline.TotalSolved)
	assert.Equal(t, 1, rec.WeeklyBaseline.Contests)
	assert.Equal(t, now, rec.WeeklyBaseline.TakenAt)
}
