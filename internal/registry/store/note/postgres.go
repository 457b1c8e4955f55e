package note

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

const noteColumns = `id, shinigami_id, owner_id, person_ids, created_at, updated_at, version`

// Postgres persists death notes in PostgreSQL. The registered person ids
// live in a JSONB column; notes hold at most a handful of entries and are
// always read and written whole.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, n *models.DeathNote) error {
	personIDs, err := json.Marshal(n.PersonIDs)
	if err != nil {
		return fmt.Errorf("marshal person ids: %w", err)
	}
	n.Version = 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO death_notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(n.ID), uuid.UUID(n.ShinigamiID), nullOwner(n.OwnerID),
		personIDs, n.CreatedAt, n.UpdatedAt, n.Version)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+` FROM death_notes WHERE id = $1`, uuid.UUID(noteID))
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find note: %w", err)
	}
	return n, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.DeathNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM death_notes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

// ListContaining returns every note whose person_ids array holds personID.
func (s *Postgres) ListContaining(ctx context.Context, personID id.PersonID) ([]*models.DeathNote, error) {
	entry, err := json.Marshal([]id.PersonID{personID})
	if err != nil {
		return nil, fmt.Errorf("marshal person id: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+` FROM death_notes WHERE person_ids @> $1`, entry)
	if err != nil {
		return nil, fmt.Errorf("list notes containing person: %w", err)
	}
	defer rows.Close()
	return collectNotes(rows)
}

func (s *Postgres) CountOwned(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM death_notes WHERE owner_id IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count owned notes: %w", err)
	}
	return count, nil
}

func (s *Postgres) Update(ctx context.Context, n *models.DeathNote) error {
	personIDs, err := json.Marshal(n.PersonIDs)
	if err != nil {
		return fmt.Errorf("marshal person ids: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE death_notes SET
			owner_id = $1, person_ids = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		nullOwner(n.OwnerID), personIDs, n.UpdatedAt, uuid.UUID(n.ID), n.Version)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return s.missOrMismatch(ctx, n.ID)
	}
	n.Version++
	return nil
}

func (s *Postgres) missOrMismatch(ctx context.Context, noteID id.NoteID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM death_notes WHERE id = $1)`, uuid.UUID(noteID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check note existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionMismatch
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.DeathNote, error) {
	var (
		n           models.DeathNote
		noteID      uuid.UUID
		shinigamiID uuid.UUID
		ownerID     uuid.NullUUID
		personIDs   []byte
	)
	err := row.Scan(&noteID, &shinigamiID, &ownerID, &personIDs,
		&n.CreatedAt, &n.UpdatedAt, &n.Version)
	if err != nil {
		return nil, err
	}
	n.ID = id.NoteID(noteID)
	n.ShinigamiID = id.ShinigamiID(shinigamiID)
	if ownerID.Valid {
		oid := id.OwnerID(ownerID.UUID)
		n.OwnerID = &oid
	}
	if err := json.Unmarshal(personIDs, &n.PersonIDs); err != nil {
		return nil, fmt.Errorf("unmarshal person ids: %w", err)
	}
	if n.PersonIDs == nil {
		n.PersonIDs = []id.PersonID{}
	}
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]*models.DeathNote, error) {
	notes := make([]*models.DeathNote, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func nullOwner(ownerID *id.OwnerID) uuid.NullUUID {
	if ownerID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*ownerID), Valid: true}
}
