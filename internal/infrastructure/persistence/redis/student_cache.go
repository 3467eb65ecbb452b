package redis

import (
	"context"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

// DefaultSnapshotTTL bounds how stale a cached snapshot can get even if
// an invalidation is lost.
const DefaultSnapshotTTL = 15 * time.Minute

// StudentCache caches student record snapshots by ID and by handle.
// It satisfies the CacheInvalidator ports in the application layer.
type StudentCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStudentCache creates a new StudentCache.
func NewStudentCache(cache *Cache) *StudentCache {
	return &StudentCache{cache: cache, ttl: DefaultSnapshotTTL}
}

// Get fetches a cached snapshot by student ID.
// Returns ErrCacheMiss when not cached.
func (s *StudentCache) Get(ctx context.Context, studentID string) (*student.Record, error) {
	var rec student.Record
	if err := s.cache.Get(ctx, StudentKey(studentID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByHandle fetches a cached snapshot by normalized handle.
func (s *StudentCache) GetByHandle(ctx context.Context, handle student.Handle) (*student.Record, error) {
	var rec student.Record
	if err := s.cache.Get(ctx, HandleKey(handle.Normalized().String()), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set caches a snapshot under both its ID and handle keys.
func (s *StudentCache) Set(ctx context.Context, rec *student.Record) error {
	if err := s.cache.Set(ctx, StudentKey(rec.ID), rec, s.ttl); err != nil {
		return err
	}
	return s.cache.Set(ctx, HandleKey(rec.Handle.Normalized().String()), rec, s.ttl)
}

// InvalidateStudent drops both snapshot keys after a write.
func (s *StudentCache) InvalidateStudent(ctx context.Context, rec *student.Record) error {
	return s.cache.Delete(ctx,
		StudentKey(rec.ID),
		HandleKey(rec.Handle.Normalized().String()),
	)
}
