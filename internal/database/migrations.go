package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations run in order at startup; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		year INT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		enrolment_limit INT NOT NULL DEFAULT 2,
		single_events_allowed BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS venues (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS children (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL,
		birthdate DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guardians (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS children_guardians (
		child_id UUID NOT NULL REFERENCES children(id) ON DELETE CASCADE,
		guardian_id UUID NOT NULL REFERENCES guardians(id) ON DELETE CASCADE,
		type TEXT NOT NULL DEFAULT 'parent',
		PRIMARY KEY (child_id, guardian_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_groups (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES projects(id),
		event_group_id UUID REFERENCES event_groups(id),
		ticket_system TEXT NOT NULL CHECK (ticket_system IN ('internal', 'ticketmaster')),
		capacity_per_occurrence INT,
		duration INT,
		published_at TIMESTAMPTZ,
		ready_for_event_group_publishing BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event_translations (
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		language_code TEXT NOT NULL,
		name TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (event_id, language_code)
	)`,
	`CREATE TABLE IF NOT EXISTS event_group_translations (
		event_group_id UUID NOT NULL REFERENCES event_groups(id) ON DELETE CASCADE,
		language_code TEXT NOT NULL,
		name TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (event_group_id, language_code)
	)`,
	`CREATE TABLE IF NOT EXISTS occurrences (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id),
		venue_id UUID NOT NULL REFERENCES venues(id),
		time TIMESTAMPTZ NOT NULL,
		capacity_override INT,
		ticket_system_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enrolments (
		id UUID PRIMARY KEY,
		child_id UUID NOT NULL REFERENCES children(id) ON DELETE CASCADE,
		occurrence_id UUID NOT NULL REFERENCES occurrences(id),
		attended BOOLEAN,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (child_id, occurrence_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_system_passwords (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id),
		value TEXT NOT NULL,
		child_id UUID REFERENCES children(id),
		assigned_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (event_id, value),
		UNIQUE (event_id, child_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_occurrences_event ON occurrences(event_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrolments_occurrence ON enrolments(occurrence_id)`,
	`CREATE INDEX IF NOT EXISTS idx_enrolments_child ON enrolments(child_id)`,
	`CREATE INDEX IF NOT EXISTS idx_passwords_event ON ticket_system_passwords(event_id)`,
}

// Migrate applies the schema at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
