package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Fetcher fetches the three profile facets from the upstream API.
// Implemented by the codeforces client.
type Fetcher interface {
	FetchIdentity(ctx context.Context, handle student.Handle) (student.Identity, error)
	FetchContestHistory(ctx context.Context, handle student.Handle) ([]student.ContestResult, error)
	FetchSubmissions(ctx context.Context, handle student.Handle) ([]student.Submission, error)
}

// CacheInvalidator drops cached read snapshots after a write.
type CacheInvalidator interface {
	InvalidateStudent(ctx context.Context, rec *student.Record) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service runs the fetch-reconcile-persist cycle for single students.
// The roster job loops over this; the on-demand path calls it directly.
type Service struct {
	fetcher    Fetcher
	repo       student.Repository
	cache      CacheInvalidator // optional
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewService creates a new sync service. cache may be nil.
func NewService(fetcher Fetcher, repo student.Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:    fetcher,
		repo:       repo,
		cache:      cache,
		reconciler: NewReconciler(logger),
		logger:     logger,
	}
}

// SyncOne fetches all three facets for the record's handle, reconciles
// them and persists the record in one write.
//
// All three fetches must succeed before anything is applied: a partial
// fetch leaves the stored record exactly as it was.
func (s *Service) SyncOne(ctx context.Context, rec *student.Record) (ReconcileResult, error) {
	handle := rec.Handle

	identity, err := s.fetcher.FetchIdentity(ctx, handle)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("sync %s: %w", handle, err)
	}

	contests, err := s.fetcher.FetchContestHistory(ctx, handle)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("sync %s: %w", handle, err)
	}

	submissions, err := s.fetcher.FetchSubmissions(ctx, handle)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("sync %s: %w", handle, err)
	}

	result := s.reconciler.Reconcile(rec, identity, contests, submissions, timeutil.Now())

	if err := s.repo.Update(ctx, rec); err != nil {
		return result, fmt.Errorf("sync %s: persist: %w", handle, err)
	}

	s.invalidate(ctx, rec)

	return result, nil
}

// SyncByHandle loads a record by handle and syncs it. Used by the
// on-demand path.
func (s *Service) SyncByHandle(ctx context.Context, handle student.Handle) (ReconcileResult, error) {
	rec, err := s.repo.GetByHandle(ctx, handle)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("sync %s: %w", handle, err)
	}
	return s.SyncOne(ctx, rec)
}

// invalidate drops cached snapshots. A stale cache entry expires on its
// own, so a failed invalidation is only logged.
func (s *Service) invalidate(ctx context.Context, rec *student.Record) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStudent(ctx, rec); err != nil {
		s.logger.Warn("cache invalidation failed",
			"student_id", rec.ID,
			"error", err,
		)
	}
}
