package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC RUN JOURNAL
// ══════════════════════════════════════════════════════════════════════════════

// SyncRun is one recorded roster sync run.
type SyncRun struct {
	ID           int64
	StartedAt    time.Time
	CompletedAt  time.Time
	Total        int
	Synced       int
	Failed       int
	Skipped      int
	ErrorSummary string
}

// SyncRunRepository journals roster sync runs so operators can see
// when the roster last synced and how it went.
type SyncRunRepository struct {
	conn *Connection
}

// NewSyncRunRepository creates a new SyncRunRepository.
func NewSyncRunRepository(conn *Connection) *SyncRunRepository {
	return &SyncRunRepository{conn: conn}
}

// Record persists one run summary.
func (r *SyncRunRepository) Record(ctx context.Context, run SyncRun) error {
	query := `
		INSERT INTO sync_runs (started_at, completed_at, total, synced, failed, skipped, error_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.conn.Exec(ctx, query,
		run.StartedAt,
		run.CompletedAt,
		run.Total,
		run.Synced,
		run.Failed,
		run.Skipped,
		run.ErrorSummary,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// Latest returns the most recent run, or nil when none exist.
func (r *SyncRunRepository) Latest(ctx context.Context) (*SyncRun, error) {
	query := `
		SELECT id, started_at, completed_at, total, synced, failed, skipped, error_summary
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run SyncRun
	err := r.conn.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Total,
		&run.Synced,
		&run.Failed,
		&run.Skipped,
		&run.ErrorSummary,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest sync run: %w", err)
	}

	return &run, nil
}

// LastSyncTime returns when the roster last finished syncing, or the
// zero time when it never has.
func (r *SyncRunRepository) LastSyncTime(ctx context.Context) (time.Time, error) {
	run, err := r.Latest(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if run == nil {
		return time.Time{}, nil
	}
	return run.CompletedAt, nil
}

// Prune keeps only the most recent n runs.
func (r *SyncRunRepository) Prune(ctx context.Context, keep int) error {
	query := `
		DELETE FROM sync_runs
		WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY started_at DESC LIMIT $1)
	`
	if _, err := r.conn.Exec(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to prune sync runs: %w", err)
	}
	return nil
}
