// Package domain defines typed identifiers for the registry's entities.
// Distinct types keep a PersonID from ever being passed where a NoteID is
// expected; the compiler enforces what would otherwise be a runtime bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "deathnote/pkg/domain-errors"
)

type (
	// PersonID identifies a person written into a death note.
	PersonID uuid.UUID
	// NoteID identifies a death note.
	NoteID uuid.UUID
	// OwnerID identifies the human owner of a death note.
	OwnerID uuid.UUID
	// ShinigamiID identifies the supernatural issuer of a death note.
	ShinigamiID uuid.UUID
)

func (id PersonID) String() string    { return uuid.UUID(id).String() }
func (id NoteID) String() string      { return uuid.UUID(id).String() }
func (id OwnerID) String() string     { return uuid.UUID(id).String() }
func (id ShinigamiID) String() string { return uuid.UUID(id).String() }

func (id PersonID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id NoteID) IsZero() bool      { return uuid.UUID(id) == uuid.Nil }
func (id OwnerID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ShinigamiID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// The typed ids do not inherit uuid.UUID's text marshaling, so each type
// spells it out; JSON payloads and cache entries must carry canonical
// uuid strings, not byte arrays.

func (id PersonID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id NoteID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id OwnerID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id ShinigamiID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PersonID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text), "person")
	if err != nil {
		return err
	}
	*id = PersonID(parsed)
	return nil
}

func (id *NoteID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text), "note")
	if err != nil {
		return err
	}
	*id = NoteID(parsed)
	return nil
}

func (id *OwnerID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text), "owner")
	if err != nil {
		return err
	}
	*id = OwnerID(parsed)
	return nil
}

func (id *ShinigamiID) UnmarshalText(text []byte) error {
	parsed, err := parseUUID(string(text), "shinigami")
	if err != nil {
		return err
	}
	*id = ShinigamiID(parsed)
	return nil
}

// NewPersonID returns a fresh random person identifier.
func NewPersonID() PersonID { return PersonID(uuid.New()) }

// NewNoteID returns a fresh random note identifier.
func NewNoteID() NoteID { return NoteID(uuid.New()) }

// NewOwnerID returns a fresh random owner identifier.
func NewOwnerID() OwnerID { return OwnerID(uuid.New()) }

// NewShinigamiID returns a fresh random shinigami identifier.
func NewShinigamiID() ShinigamiID { return ShinigamiID(uuid.New()) }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Used by all typed parse functions at trust boundaries.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid uuid", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id must not be the nil uuid", kind)
	}
	return parsed, nil
}

// ParsePersonID parses a person id from its string form.
func ParsePersonID(raw string) (PersonID, error) {
	parsed, err := parseUUID(raw, "person")
	return PersonID(parsed), err
}

// ParseNoteID parses a note id from its string form.
func ParseNoteID(raw string) (NoteID, error) {
	parsed, err := parseUUID(raw, "note")
	return NoteID(parsed), err
}

// ParseOwnerID parses an owner id from its string form.
func ParseOwnerID(raw string) (OwnerID, error) {
	parsed, err := parseUUID(raw, "owner")
	return OwnerID(parsed), err
}

// ParseShinigamiID parses a shinigami id from its string form.
func ParseShinigamiID(raw string) (ShinigamiID, error) {
	parsed, err := parseUUID(raw, "shinigami")
	return ShinigamiID(parsed), err
}
