package models

import (
	"time"

	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
)

// Owner is the human holder of a death note. NoteID links back to the note
// whose OwnerID points at this record; RejectOwnership clears both sides.
type Owner struct {
	ID                    id.OwnerID `json:"id"`
	Name                  string     `json:"name"`
	HasShinigamiEyes      bool       `json:"has_shinigami_eyes"`
	ShinigamiEyesDealDate *time.Time `json:"shinigami_eyes_deal_date,omitempty"`
	NoteID                *id.NoteID `json:"note_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Version               int64      `json:"version"`
}

// NewOwner creates an owner record, optionally already linked to a note.
func NewOwner(ownerID id.OwnerID, name string, noteID *id.NoteID, now time.Time) (*Owner, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner name cannot be empty")
	}
	return &Owner{
		ID:        ownerID,
		Name:      name,
		NoteID:    noteID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanTradeEyes checks the shinigami-eyes deal has not already been made.
// The deal is irreversible.
func (o *Owner) CanTradeEyes() error {
	if o.HasShinigamiEyes {
		return dErrors.New(dErrors.CodeInvariantViolation, "owner already traded for shinigami eyes")
	}
	return nil
}

// ApplyTradeEyes records the shinigami-eyes deal.
func (o *Owner) ApplyTradeEyes(now time.Time) {
	o.HasShinigamiEyes = true
	dealDate := now
	o.ShinigamiEyesDealDate = &dealDate
	o.UpdatedAt = now
}

// LinkNote points the owner at the note they claimed.
func (o *Owner) LinkNote(noteID id.NoteID, now time.Time) {
	nid := noteID
	o.NoteID = &nid
	o.UpdatedAt = now
}

// UnlinkNote clears the owner's note link.
func (o *Owner) UnlinkNote(now time.Time) {
	o.NoteID = nil
	o.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out records without
// aliasing their internal state.
func (o *Owner) Clone() *Owner {
	clone := *o
	if o.ShinigamiEyesDealDate != nil {
		t := *o.ShinigamiEyesDealDate
		clone.ShinigamiEyesDealDate = &t
	}
	if o.NoteID != nil {
		nid := *o.NoteID
		clone.NoteID = &nid
	}
	return &clone
}
