package models

import (
	"time"

	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
)

// Default texts applied at registration. The cause is replaced only by an
// explicit specification; the details string tracks which stage of the
// lifecycle last touched the record.
const (
	DefaultCauseOfDeath   = "heart attack"
	DefaultDeathDetails   = "death scheduled by note entry"
	AwaitingDeathDetails  = "details pending specification"
	pastTargetTolerance   = time.Second
)

// Person is the aggregate root for a name written into a death note.
//
// Invariants:
//   - Name is non-empty
//   - Alive is false iff Status is terminal (DEAD_TIMEOUT or DEAD_EXPLICIT)
//   - A non-nil ScheduledDeathTime implies Alive and a non-terminal Status
//   - EntryTime is immutable after construction
//   - DeathDate is set only at finalization
//
// # Concurrency
//
// Version is an optimistic-concurrency counter. Every store Update is
// conditional on the version the caller loaded; the scheduler and
// request-driven operations race on the same records, and the loser of a
// race must observe a version mismatch rather than silently overwrite.
// Mutating methods never bump Version themselves; stores do that on a
// successful conditional write, so an in-memory retry loop can re-apply a
// transition to a freshly loaded record.
type Person struct {
	ID                 id.PersonID `json:"id"`
	Name               string      `json:"name"`
	Alive              bool        `json:"alive"`
	Status             Status      `json:"status"`
	EntryTime          time.Time   `json:"entry_time"`
	ScheduledDeathTime *time.Time  `json:"scheduled_death_time,omitempty"`
	DeathDate          *time.Time  `json:"death_date,omitempty"`
	DeathDetails       string      `json:"death_details,omitempty"`
	CauseOfDeath       string      `json:"cause_of_death,omitempty"`
	FacePhoto          string      `json:"face_photo,omitempty"`
	NoteID             id.NoteID   `json:"note_id"`
	Version            int64       `json:"version"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// NewPerson registers a person against a note. The default deadline starts
// ticking immediately; a photo reference is carried opaquely and has no
// effect on the lifecycle.
func NewPerson(personID id.PersonID, name, facePhoto string, noteID id.NoteID, now time.Time, deadline time.Duration) (*Person, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "person name cannot be empty")
	}
	scheduled := now.Add(deadline)
	return &Person{
		ID:                 personID,
		Name:               name,
		Alive:              true,
		Status:             StatusPending,
		EntryTime:          now,
		ScheduledDeathTime: &scheduled,
		DeathDetails:       DefaultDeathDetails,
		CauseOfDeath:       DefaultCauseOfDeath,
		FacePhoto:          facePhoto,
		NoteID:             noteID,
		UpdatedAt:          now,
	}, nil
}

// Terminal reports whether the person has reached a dead state.
func (p *Person) Terminal() bool {
	return p.Status.Terminal()
}

// Consistent reports the core invariant: alive iff non-terminal, and a
// pending deadline only on living records. Tests check it after every
// operation.
func (p *Person) Consistent() bool {
	if p.Alive == p.Status.Terminal() {
		return false
	}
	if p.ScheduledDeathTime != nil && (!p.Alive || p.Status.Terminal()) {
		return false
	}
	return true
}

// CanBeginDetails checks if opening the detail form is a meaningful
// transition. Already-awaiting and terminal states are reported as
// ErrNoOp so callers can treat the request as idempotent.
func (p *Person) CanBeginDetails() error {
	if p.Status == StatusAwaitingDetails || p.Terminal() {
		return ErrNoOp
	}
	if p.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot begin detail specification from status %s", p.Status)
	}
	return nil
}

// ApplyBeginDetails extends the deadline relative to the immutable entry
// time and marks the record as awaiting details. The cause of death is
// deliberately left untouched.
func (p *Person) ApplyBeginDetails(now time.Time, detailDeadline time.Duration) {
	extended := p.EntryTime.Add(detailDeadline)
	p.ScheduledDeathTime = &extended
	p.Status = StatusAwaitingDetails
	p.DeathDetails = AwaitingDeathDetails
	p.UpdatedAt = now
}

// CanSpecifyDeath checks that an explicit death specification is allowed
// from the current state.
func (p *Person) CanSpecifyDeath(target time.Time) error {
	if target.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "target death time is required")
	}
	if p.Terminal() {
		return dErrors.New(dErrors.CodeInvariantViolation, "person is already dead")
	}
	if p.Status != StatusPending && p.Status != StatusAwaitingDetails {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot specify death from status %s", p.Status)
	}
	return nil
}

// ApplySpecifyDeath records an explicit death time. A target at or before
// now (within a one-second tolerance) kills immediately; a future target
// reschedules the deadline the scheduler watches.
func (p *Person) ApplySpecifyDeath(target time.Time, details, cause string, now time.Time) {
	if details != "" {
		p.DeathDetails = details
	}
	if cause != "" {
		p.CauseOfDeath = cause
	}
	if !target.After(now.Add(pastTargetTolerance)) {
		deathDate := target
		p.Alive = false
		p.Status = StatusDeadExplicit
		p.DeathDate = &deathDate
		p.ScheduledDeathTime = nil
	} else {
		scheduled := target
		p.Alive = true
		p.Status = StatusScheduledExplicit
		p.ScheduledDeathTime = &scheduled
		p.DeathDate = nil
	}
	p.UpdatedAt = now
}

// CanFinalize checks the scheduler's precondition: a living record whose
// deadline has elapsed. An already-dead record is reported as ErrNoOp:
// a concurrent sweep or request finalized it first, and finalization is
// idempotent.
func (p *Person) CanFinalize(now time.Time) error {
	if !p.Alive || p.Terminal() {
		return ErrNoOp
	}
	if p.ScheduledDeathTime == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "person has no pending deadline")
	}
	if p.ScheduledDeathTime.After(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "deadline has not elapsed")
	}
	return nil
}

// ApplyFinalize marks an overdue person dead. The death date is the
// deadline that triggered finalization, not the sweep time.
func (p *Person) ApplyFinalize(now time.Time) {
	deathDate := *p.ScheduledDeathTime
	p.Alive = false
	p.DeathDate = &deathDate
	p.ScheduledDeathTime = nil
	if p.Status == StatusScheduledExplicit {
		p.Status = StatusDeadExplicit
	} else {
		p.Status = StatusDeadTimeout
	}
	p.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out records without
// aliasing their internal state.
func (p *Person) Clone() *Person {
	clone := *p
	if p.ScheduledDeathTime != nil {
		t := *p.ScheduledDeathTime
		clone.ScheduledDeathTime = &t
	}
	if p.DeathDate != nil {
		t := *p.DeathDate
		clone.DeathDate = &t
	}
	return &clone
}
