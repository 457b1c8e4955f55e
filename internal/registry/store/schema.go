// Package store holds the shared PostgreSQL schema and error helpers for
// the entity stores in its subpackages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the registry tables. The partial index on persons covers
// exactly the due-set query the scheduler runs every tick.
const Schema = `
CREATE TABLE IF NOT EXISTS persons (
    id                   UUID PRIMARY KEY,
    name                 TEXT NOT NULL,
    alive                BOOLEAN NOT NULL,
    status               TEXT NOT NULL,
    entry_time           TIMESTAMPTZ NOT NULL,
    scheduled_death_time TIMESTAMPTZ,
    death_date           TIMESTAMPTZ,
    death_details        TEXT NOT NULL DEFAULT '',
    cause_of_death       TEXT NOT NULL DEFAULT '',
    face_photo           TEXT NOT NULL DEFAULT '',
    note_id              UUID NOT NULL,
    version              BIGINT NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_due
    ON persons (scheduled_death_time)
    WHERE alive AND scheduled_death_time IS NOT NULL;

CREATE TABLE IF NOT EXISTS death_notes (
    id           UUID PRIMARY KEY,
    shinigami_id UUID NOT NULL,
    owner_id     UUID,
    person_ids   JSONB NOT NULL DEFAULT '[]',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL,
    version      BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS owners (
    id                       UUID PRIMARY KEY,
    name                     TEXT NOT NULL,
    has_shinigami_eyes       BOOLEAN NOT NULL DEFAULT FALSE,
    shinigami_eyes_deal_date TIMESTAMPTZ,
    note_id                  UUID,
    created_at               TIMESTAMPTZ NOT NULL,
    updated_at               TIMESTAMPTZ NOT NULL,
    version                  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_owners_note ON owners (note_id) WHERE note_id IS NOT NULL;
`

// EnsureSchema applies the schema idempotently.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
