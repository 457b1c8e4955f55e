package owner

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

const ownerColumns = `id, name, has_shinigami_eyes, shinigami_eyes_deal_date,
	note_id, created_at, updated_at, version`

// Postgres persists owner records in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, o *models.Owner) error {
	o.Version = 1
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (`+ownerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(o.ID), o.Name, o.HasShinigamiEyes, nullTime(o.ShinigamiEyesDealDate),
		nullNote(o.NoteID), o.CreatedAt, o.UpdatedAt, o.Version)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ownerColumns+` FROM owners WHERE id = $1`, uuid.UUID(ownerID))
	o, err := scanOwner(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find owner: %w", err)
	}
	return o, nil
}

func (s *Postgres) FindByNote(ctx context.Context, noteID id.NoteID) (*models.Owner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ownerColumns+` FROM owners WHERE note_id = $1`, uuid.UUID(noteID))
	o, err := scanOwner(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find owner by note: %w", err)
	}
	return o, nil
}

func (s *Postgres) Update(ctx context.Context, o *models.Owner) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE owners SET
			name = $1, has_shinigami_eyes = $2, shinigami_eyes_deal_date = $3,
			note_id = $4, version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`,
		o.Name, o.HasShinigamiEyes, nullTime(o.ShinigamiEyesDealDate),
		nullNote(o.NoteID), o.UpdatedAt, uuid.UUID(o.ID), o.Version)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	if affected == 0 {
		return s.missOrMismatch(ctx, o.ID)
	}
	o.Version++
	return nil
}

func (s *Postgres) missOrMismatch(ctx context.Context, ownerID id.OwnerID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM owners WHERE id = $1)`, uuid.UUID(ownerID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check owner existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrVersionMismatch
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*models.Owner, error) {
	var (
		o        models.Owner
		ownerID  uuid.UUID
		dealDate sql.NullTime
		noteID   uuid.NullUUID
	)
	err := row.Scan(&ownerID, &o.Name, &o.HasShinigamiEyes, &dealDate,
		&noteID, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	if err != nil {
		return nil, err
	}
	o.ID = id.OwnerID(ownerID)
	if dealDate.Valid {
		t := dealDate.Time
		o.ShinigamiEyesDealDate = &t
	}
	if noteID.Valid {
		nid := id.NoteID(noteID.UUID)
		o.NoteID = &nid
	}
	return &o, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func nullNote(noteID *id.NoteID) uuid.NullUUID {
	if noteID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*noteID), Valid: true}
}
