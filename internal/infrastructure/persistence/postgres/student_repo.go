package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cf-hub/progress-tracker/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `
	id, name, email, phone, handle,
	rating, max_rating, rank_title, max_rank_title,
	last_synced_at, last_activity_at,
	contest_history, solved_problems, stats,
	email_reminders_enabled, reminder_emails_sent, reminder_count,
	last_reminder_sent_at, weekly_baseline, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create persists a newly enrolled student.
func (r *StudentRepository) Create(ctx context.Context, rec *student.Record) error {
	query := `
		INSERT INTO students (
			id, name, email, phone, handle, handle_normalized,
			rating, max_rating, rank_title, max_rank_title,
			last_synced_at, last_activity_at,
			contest_history, solved_problems, stats,
			email_reminders_enabled, reminder_emails_sent, reminder_count,
			last_reminder_sent_at, weekly_baseline, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`

	contests, solves, stats, baseline, err := marshalCollections(rec)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.Phone,
		rec.Handle.String(),
		rec.Handle.Normalized().String(),
		int(rec.Rating),
		int(rec.MaxRating),
		rec.Rank.String(),
		rec.MaxRank.String(),
		nullableTime(rec.LastSyncedAt),
		nullableTime(rec.LastActivityAt),
		contests,
		solves,
		stats,
		rec.EmailRemindersEnabled,
		rec.ReminderEmailsSent,
		rec.ReminderCount,
		nullableTime(rec.LastReminderSentAt),
		baseline,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Record, error) {
	query := `SELECT` + studentColumns + ` FROM students WHERE id = $1`
	return r.scanRecord(r.conn.QueryRow(ctx, query, id))
}

// GetByHandle returns a student by Codeforces handle, case-insensitively.
func (r *StudentRepository) GetByHandle(ctx context.Context, handle student.Handle) (*student.Record, error) {
	query := `SELECT` + studentColumns + ` FROM students WHERE handle_normalized = $1`
	return r.scanRecord(r.conn.QueryRow(ctx, query, handle.Normalized().String()))
}

// GetAll returns every enrolled student, oldest sync first so the
// roster job works on the stalest records before a mid-run failure.
func (r *StudentRepository) GetAll(ctx context.Context) ([]*student.Record, error) {
	query := `SELECT` + studentColumns + ` FROM students ORDER BY last_synced_at ASC NULLS FIRST`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetInactiveSince returns students whose last activity is before the
// cutoff. Students with no recorded activity fall back to their
// enrollment time, matching Record.InactiveFor.
func (r *StudentRepository) GetInactiveSince(ctx context.Context, cutoff time.Time) ([]*student.Record, error) {
	query := `SELECT` + studentColumns + `
		FROM students
		WHERE COALESCE(last_activity_at, created_at) < $1
		ORDER BY last_activity_at ASC NULLS FIRST`

	rows, err := r.conn.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive students: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// Update persists the full record in a single statement. Readers never
// observe a record with, say, new stats but an old solved set.
func (r *StudentRepository) Update(ctx context.Context, rec *student.Record) error {
	query := `
		UPDATE students SET
			name = $2,
			email = $3,
			phone = $4,
			handle = $5,
			handle_normalized = $6,
			rating = $7,
			max_rating = $8,
			rank_title = $9,
			max_rank_title = $10,
			last_synced_at = $11,
			last_activity_at = $12,
			contest_history = $13,
			solved_problems = $14,
			stats = $15,
			email_reminders_enabled = $16,
			reminder_emails_sent = $17,
			reminder_count = $18,
			last_reminder_sent_at = $19,
			weekly_baseline = $20,
			updated_at = $21
		WHERE id = $1
	`

	contests, solves, stats, baseline, err := marshalCollections(rec)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.Phone,
		rec.Handle.String(),
		rec.Handle.Normalized().String(),
		int(rec.Rating),
		int(rec.MaxRating),
		rec.Rank.String(),
		rec.MaxRank.String(),
		nullableTime(rec.LastSyncedAt),
		nullableTime(rec.LastActivityAt),
		contests,
		solves,
		stats,
		rec.EmailRemindersEnabled,
		rec.ReminderEmailsSent,
		rec.ReminderCount,
		nullableTime(rec.LastReminderSentAt),
		baseline,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrNotFound
	}

	return nil
}

// Delete removes a student record.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrNotFound
	}
	return nil
}

// Count returns the number of enrolled students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *StudentRepository) scanRecord(row pgx.Row) (*student.Record, error) {
	var (
		rec                student.Record
		handle             string
		rank, maxRank      string
		lastSyncedAt       *time.Time
		lastActivityAt     *time.Time
		lastReminderSentAt *time.Time
		contests           []byte
		solves             []byte
		stats              []byte
		baseline           []byte
	)

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Phone,
		&handle,
		&rec.Rating,
		&rec.MaxRating,
		&rank,
		&maxRank,
		&lastSyncedAt,
		&lastActivityAt,
		&contests,
		&solves,
		&stats,
		&rec.EmailRemindersEnabled,
		&rec.ReminderEmailsSent,
		&rec.ReminderCount,
		&lastReminderSentAt,
		&baseline,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, student.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	rec.Handle = student.Handle(handle)
	rec.Rank = student.RankTitle(rank)
	rec.MaxRank = student.RankTitle(maxRank)
	rec.LastSyncedAt = timeOrZero(lastSyncedAt)
	rec.LastActivityAt = timeOrZero(lastActivityAt)
	rec.LastReminderSentAt = timeOrZero(lastReminderSentAt)

	if err := json.Unmarshal(contests, &rec.ContestHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contest history: %w", err)
	}
	if err := json.Unmarshal(solves, &rec.SolvedProblems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal solved problems: %w", err)
	}
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	if err := json.Unmarshal(baseline, &rec.WeeklyBaseline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weekly baseline: %w", err)
	}

	return &rec, nil
}

func (r *StudentRepository) scanRecords(rows pgx.Rows) ([]*student.Record, error) {
	records := make([]*student.Record, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func marshalCollections(rec *student.Record) (contests, solves, stats, baseline []byte, err error) {
	if contests, err = json.Marshal(rec.ContestHistory); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal contest history: %w", err)
	}
	if solves, err = json.Marshal(rec.SolvedProblems); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal solved problems: %w", err)
	}
	if stats, err = json.Marshal(rec.Stats); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal stats: %w", err)
	}
	if baseline, err = json.Marshal(rec.WeeklyBaseline); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to marshal weekly baseline: %w", err)
	}
	return contests, solves, stats, baseline, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
