package models

import (
	"time"

	"github.com/google/uuid"

	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
)

// DeathNote is a registry conferring the death effect on registered persons.
//
// Invariants:
//   - ShinigamiID is immutable once set
//   - PersonIDs is append-only and duplicate-free
//   - A non-nil OwnerID never equals the id of a person in PersonIDs;
//     enforced at write time by CanWritePerson, not as a standing store
//     constraint, because ownership and registration are asserted
//     independently
type DeathNote struct {
	ID          id.NoteID      `json:"id"`
	ShinigamiID id.ShinigamiID `json:"shinigami_id"`
	OwnerID     *id.OwnerID    `json:"owner_id,omitempty"`
	PersonIDs   []id.PersonID  `json:"person_ids"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Version     int64          `json:"version"`
}

// NewDeathNote creates a note issued by the given shinigami. ownerID may be
// nil for an unclaimed note.
func NewDeathNote(noteID id.NoteID, shinigamiID id.ShinigamiID, ownerID *id.OwnerID, now time.Time) (*DeathNote, error) {
	if shinigamiID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "death note requires an issuing shinigami")
	}
	return &DeathNote{
		ID:          noteID,
		ShinigamiID: shinigamiID,
		OwnerID:     ownerID,
		PersonIDs:   []id.PersonID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Owned reports whether the note currently has a human owner.
func (n *DeathNote) Owned() bool {
	return n.OwnerID != nil
}

// HasPerson reports whether personID is already registered in this note.
func (n *DeathNote) HasPerson(personID id.PersonID) bool {
	for _, pid := range n.PersonIDs {
		if pid == personID {
			return true
		}
	}
	return false
}

// CanWritePerson enforces the self-targeting rule: the owner of a note can
// never be registered in it. Owner and person ids share one opaque id
// space, so the comparison is on the underlying value.
func (n *DeathNote) CanWritePerson(personID id.PersonID) error {
	if n.OwnerID != nil && uuid.UUID(*n.OwnerID) == uuid.UUID(personID) {
		return dErrors.New(dErrors.CodeInvariantViolation, "self-targeting: owner cannot be written into their own note")
	}
	return nil
}

// ApplyWritePerson appends personID with set semantics. Writing an
// already-registered person is an idempotent no-op.
func (n *DeathNote) ApplyWritePerson(personID id.PersonID, now time.Time) {
	if n.HasPerson(personID) {
		return
	}
	n.PersonIDs = append(n.PersonIDs, personID)
	n.UpdatedAt = now
}

// RemovePerson pulls personID out of the note. Used by the cross-entity
// cleanup that accompanies person deletion.
func (n *DeathNote) RemovePerson(personID id.PersonID, now time.Time) bool {
	for i, pid := range n.PersonIDs {
		if pid == personID {
			n.PersonIDs = append(n.PersonIDs[:i], n.PersonIDs[i+1:]...)
			n.UpdatedAt = now
			return true
		}
	}
	return false
}

// CanClaim checks that the note is unclaimed.
func (n *DeathNote) CanClaim() error {
	if n.Owned() {
		return dErrors.New(dErrors.CodeInvariantViolation, "death note already has an owner")
	}
	return nil
}

// ApplyClaim assigns the note to ownerID.
func (n *DeathNote) ApplyClaim(ownerID id.OwnerID, now time.Time) {
	n.OwnerID = &ownerID
	n.UpdatedAt = now
}

// CanReject checks that the note is owned by the given owner record.
// A mismatch means the owner link is stale and must not be cleared blindly.
func (n *DeathNote) CanReject(owner *Owner) error {
	if !n.Owned() {
		return dErrors.New(dErrors.CodeInvariantViolation, "death note has no owner to reject")
	}
	if owner.NoteID == nil || *owner.NoteID != n.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "owner's note link does not match this death note")
	}
	return nil
}

// ApplyReject clears the note's owner.
func (n *DeathNote) ApplyReject(now time.Time) {
	n.OwnerID = nil
	n.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out records without
// aliasing their internal state.
func (n *DeathNote) Clone() *DeathNote {
	clone := *n
	clone.PersonIDs = append([]id.PersonID(nil), n.PersonIDs...)
	if n.OwnerID != nil {
		oid := *n.OwnerID
		clone.OwnerID = &oid
	}
	return &clone
}
