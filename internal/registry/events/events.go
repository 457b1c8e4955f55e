// Package events defines the registry's outbound event stream. Every
// successful state change produces one event; delivery is best-effort and
// never blocks or fails the originating write.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypePersonRegistered  Type = "person_registered"
	TypeDetailsOpened     Type = "details_opened"
	TypeDeathScheduled    Type = "death_scheduled"
	TypeDeathFinalized    Type = "death_finalized"
	TypePersonWritten     Type = "person_written"
	TypeNoteInitialized   Type = "note_initialized"
	TypeOwnershipClaimed  Type = "ownership_claimed"
	TypeOwnershipRejected Type = "ownership_rejected"
	TypeEyesTraded        Type = "eyes_traded"
	TypePersonDeleted     Type = "person_deleted"
)

// Event is the wire shape published to the event stream. IDs are carried as
// strings so the payload stays stable across id-type changes.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PersonID   string    `json:"person_id,omitempty"`
	NoteID     string    `json:"note_id,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Cause      string    `json:"cause_of_death,omitempty"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
