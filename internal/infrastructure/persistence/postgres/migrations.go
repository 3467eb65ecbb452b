package postgres

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations returns the ordered schema migrations.
//
// The students table stores the whole aggregate in one row; the
// accumulated collections live in JSONB columns so a single UPDATE
// replaces the record atomically.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			SQL: `
CREATE TABLE IF NOT EXISTS students (
	id                      UUID PRIMARY KEY,
	name                    TEXT NOT NULL,
	email                   TEXT NOT NULL UNIQUE,
	phone                   TEXT NOT NULL DEFAULT '',
	handle                  TEXT NOT NULL,
	handle_normalized       TEXT NOT NULL UNIQUE,
	rating                  INTEGER NOT NULL DEFAULT 0,
	max_rating              INTEGER NOT NULL DEFAULT 0,
	rank_title              TEXT NOT NULL DEFAULT 'unrated',
	max_rank_title          TEXT NOT NULL DEFAULT 'unrated',
	last_synced_at          TIMESTAMPTZ,
	last_activity_at        TIMESTAMPTZ,
	contest_history         JSONB NOT NULL DEFAULT '[]',
	solved_problems         JSONB NOT NULL DEFAULT '[]',
	stats                   JSONB NOT NULL DEFAULT '{}',
	email_reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	reminder_emails_sent    INTEGER NOT NULL DEFAULT 0,
	reminder_count          INTEGER NOT NULL DEFAULT 0,
	last_reminder_sent_at   TIMESTAMPTZ,
	weekly_baseline         JSONB NOT NULL DEFAULT '{}',
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_students_last_activity
	ON students (last_activity_at NULLS FIRST);
CREATE INDEX IF NOT EXISTS idx_students_last_synced
	ON students (last_synced_at NULLS FIRST);
`,
		},
		{
			Version: 2,
			Name:    "create_sync_runs",
			SQL: `
CREATE TABLE IF NOT EXISTS sync_runs (
	id            BIGSERIAL PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL,
	total         INTEGER NOT NULL,
	synced        INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	error_summary TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started
	ON sync_runs (started_at DESC);
`,
		},
	}
}

// Migrator applies pending migrations in order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the default migration set.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations()}
}

// Migrate applies every migration that has not been applied yet.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		if _, err := m.conn.Exec(ctx, mig.SQL); err != nil {
			return fmt.Errorf("postgres: migration %d (%s) failed: %w", mig.Version, mig.Name, err)
		}

		_, err := m.conn.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			mig.Version, mig.Name, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("postgres: recording migration %d failed: %w", mig.Version, err)
		}
	}

	return nil
}

func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("postgres: ensure migration table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}
