package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeFetcher struct {
	identity    student.Identity
	identityErr error

	contests    []student.ContestResult
	contestsErr error

	submissions    []student.Submission
	submissionsErr error
}

func (f *fakeFetcher) FetchIdentity(ctx context.Context, h student.Handle) (student.Identity, error) {
	return f.identity, f.identityErr
}

func (f *fakeFetcher) FetchContestHistory(ctx context.Context, h student.Handle) ([]student.ContestResult, error) {
	return f.contests, f.contestsErr
}

func (f *fakeFetcher) FetchSubmissions(ctx context.Context, h student.Handle) ([]student.Submission, error) {
	return f.submissions, f.submissionsErr
}

type fakeRepo struct {
	records   map[string]*student.Record
	updates   int
	updateErr error
}

func newFakeRepo(recs ...*student.Record) *fakeRepo {
	r := &fakeRepo{records: make(map[string]*student.Record)}
	for _, rec := range recs {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, rec *student.Record) error {
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*student.Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, student.ErrNotFound
	}
	return rec, nil
}

func (r *fakeRepo) GetByHandle(ctx context.Context, handle student.Handle) (*student.Record, error) {
	for _, rec := range r.records {
		if rec.Handle.Normalized() == handle.Normalized() {
			return rec, nil
		}
	}
	return nil, student.ErrNotFound
}

func (r *fakeRepo) GetAll(ctx context.Context) ([]*student.Record, error) {
	all := make([]*student.Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	return all, nil
}

func (r *fakeRepo) GetInactiveSince(ctx context.Context, cutoff time.Time) ([]*student.Record, error) {
	return nil, nil
}

func (r *fakeRepo) Update(ctx context.Context, rec *student.Record) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updates++
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	delete(r.records, id)
	return nil
}

func (r *fakeRepo) Count(ctx context.Context) (int, error) {
	return len(r.records), nil
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) InvalidateStudent(ctx context.Context, rec *student.Record) error {
	f.calls++
	return f.err
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSyncOne(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	repo := newFakeRepo(rec)
	invalidator := &fakeInvalidator{}

	fetcher := &fakeFetcher{
		identity: student.Identity{Handle: "tourist", Rating: 1500, Rank: "specialist"},
		contests: []student.ContestResult{{ContestID: 100, RatedAt: timeutil.Date(2026, 1, 10)}},
		submissions: []student.Submission{
			{ID: 1, ContestID: 100, Index: "A", Verdict: "OK", SubmittedAt: timeutil.Date(2026, 1, 10)},
		},
	}

	svc := NewService(fetcher, repo, invalidator, nil)

	result, err := svc.SyncOne(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ContestsAdded)
	assert.Equal(t, 1, result.ProblemsAdded)
	assert.Equal(t, 1, repo.updates)
	assert.Equal(t, 1, invalidator.calls)
	assert.Equal(t, student.Rating(1500), rec.Rating)
}

func TestSyncOne_PartialFetchLeavesRecordUntouched(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	repo := newFakeRepo(rec)

	fetcher := &fakeFetcher{
		identity:       student.Identity{Handle: "tourist", Rating: 1500},
		contests:       []student.ContestResult{{ContestID: 100, RatedAt: timeutil.Date(2026, 1, 10)}},
		submissionsErr: errors.New("upstream down"),
	}

	svc := NewService(fetcher, repo, nil, nil)

	_, err := svc.SyncOne(context.Background(), rec)
	require.Error(t, err)

	// The identity and contests fetched fine, but nothing was applied.
	assert.Equal(t, student.Rating(0), rec.Rating)
	assert.Empty(t, rec.ContestHistory)
	assert.Equal(t, 0, repo.updates)
}

func TestSyncOne_InvalidationFailureIsNotFatal(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "tourist"}
	repo := newFakeRepo(rec)
	invalidator := &fakeInvalidator{err: errors.New("redis down")}

	svc := NewService(&fakeFetcher{identity: student.Identity{Handle: "tourist"}}, repo, invalidator, nil)

	_, err := svc.SyncOne(context.Background(), rec)
	assert.NoError(t, err, "cache entries expire on their own")
	assert.Equal(t, 1, invalidator.calls)
}

func TestSyncByHandle(t *testing.T) {
	rec := &student.Record{ID: "s1", Handle: "Tourist"}
	repo := newFakeRepo(rec)

	svc := NewService(&fakeFetcher{identity: student.Identity{Handle: "Tourist", Rating: 1400}}, repo, nil, nil)

	_, err := svc.SyncByHandle(context.Background(), "tourist")
	require.NoError(t, err, "handle lookup is case-insensitive")
	assert.Equal(t, student.Rating(1400), rec.Rating)

	_, err = svc.SyncByHandle(context.Background(), "unknown_handle")
	assert.ErrorIs(t, err, student.ErrNotFound)
}
