package person

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

const personColumns = `id, name, alive, status, entry_time, scheduled_death_time,
	death_date, death_details, cause_of_death, face_photo, note_id, version, updated_at`

// Postgres persists persons in PostgreSQL. Updates are conditional on the
// version the caller loaded, matching the in-memory store's contract.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, p *models.Person) error {
	p.Version = 1
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persons (`+personColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(p.ID), p.Name, p.Alive, string(p.Status), p.EntryTime,
		nullTime(p.ScheduledDeathTime), nullTime(p.DeathDate),
		p.DeathDetails, p.CauseOfDeath, p.FacePhoto, uuid.UUID(p.NoteID),
		p.Version, p.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+personColumns+` FROM persons WHERE id = $1`, uuid.UUID(personID))
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find person: %w", err)
	}
	return p, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+personColumns+` FROM persons ORDER BY entry_time`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

// ListDue returns living persons whose deadline is at or before now. The
// query is covered by the partial index on (alive, scheduled_death_time).
func (s *Postgres) ListDue(ctx context.Context, now time.Time) ([]*models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+personColumns+` FROM persons
		WHERE alive AND scheduled_death_time IS NOT NULL AND scheduled_death_time <= $1
		ORDER BY scheduled_death_time`, now)
	if err != nil {
		return nil, fmt.Errorf("list due persons: %w", err)
	}
	defer rows.Close()
	return collectPersons(rows)
}

func (s *Postgres) Update(ctx context.Context, p *models.Person) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE persons SET
			name = $1, alive = $2, status = $3,
			scheduled_death_time = $4, death_date = $5,
			death_details = $6, cause_of_death = $7, face_photo = $8,
			version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`,
		p.Name, p.Alive, string(p.Status),
		nullTime(p.ScheduledDeathTime), nullTime(p.DeathDate),
		p.DeathDetails, p.CauseOfDeath, p.FacePhoto,
		p.UpdatedAt, uuid.UUID(p.ID), p.Version)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if affected == 0 {
		return s.missOrMismatch(ctx, p.ID)
	}
	p.Version++
	return nil
}

func (s *Postgres) Delete(ctx context.Context, personID id.PersonID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, uuid.UUID(personID))
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// missOrMismatch disambiguates a zero-row conditional update: the record is
// either gone or was rewritten by a concurrent writer.
func (s *Postgres) missOrMismatch(ctx context.Context, personID id.PersonID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM persons WHERE id = $1)`, uuid.UUID(personID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check person existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionMismatch
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		p         models.Person
		personID  uuid.UUID
		noteID    uuid.UUID
		status    string
		scheduled sql.NullTime
		deathDate sql.NullTime
	)
	err := row.Scan(&personID, &p.Name, &p.Alive, &status, &p.EntryTime,
		&scheduled, &deathDate, &p.DeathDetails, &p.CauseOfDeath,
		&p.FacePhoto, &noteID, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = id.PersonID(personID)
	p.NoteID = id.NoteID(noteID)
	p.Status = models.Status(status)
	if scheduled.Valid {
		t := scheduled.Time
		p.ScheduledDeathTime = &t
	}
	if deathDate.Valid {
		t := deathDate.Time
		p.DeathDate = &t
	}
	return &p, nil
}

func collectPersons(rows *sql.Rows) ([]*models.Person, error) {
	people := make([]*models.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return people, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
