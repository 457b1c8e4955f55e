package service

import (
	"context"
	"errors"

	"deathnote/internal/registry/events"
	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
	"deathnote/pkg/platform/sentinel"
	"deathnote/pkg/requestcontext"
)

// InitializeNote creates a death note issued by the given shinigami,
// optionally already held by an owner. When the single-owned-note policy is
// on, creating a second initially-owned note is rejected.
func (s *Service) InitializeNote(ctx context.Context, shinigamiID id.ShinigamiID, ownerID *id.OwnerID) (*models.DeathNote, error) {
	ctx, span := s.tracer.Start(ctx, "registry.InitializeNote")
	defer span.End()

	now := requestcontext.Now(ctx)
	if ownerID != nil {
		if _, err := s.owners.FindByID(ctx, *ownerID); err != nil {
			return nil, s.loadErr(err, "owner")
		}
		if s.cfg.SingleOwnedNote {
			// The count and the create below are not atomic: two
			// concurrent initializations can both see zero and each
			// create an owned note. The policy is best-effort, not a
			// storage invariant.
			owned, err := s.notes.CountOwned(ctx)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "counting owned notes")
			}
			if owned > 0 {
				return nil, dErrors.New(dErrors.CodeConflict, "an owned death note already exists")
			}
		}
	}

	n, err := models.NewDeathNote(id.NewNoteID(), shinigamiID, ownerID, now)
	if err != nil {
		return nil, err
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting note")
	}
	if ownerID != nil {
		if err := s.linkOwner(ctx, *ownerID, n.ID); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "death note initialized",
		"note_id", n.ID, "shinigami_id", shinigamiID, "owned", n.Owned())
	event := events.Event{
		Type:       events.TypeNoteInitialized,
		OccurredAt: now,
		NoteID:     n.ID.String(),
	}
	if ownerID != nil {
		event.OwnerID = ownerID.String()
	}
	s.emit(ctx, event)
	return n, nil
}

// ClaimOwnership assigns an unclaimed note to an owner. The owner record is
// linked first and the note written last, so a crash in between leaves a
// dangling owner link that RejectOwnership detects as stale.
func (s *Service) ClaimOwnership(ctx context.Context, noteID id.NoteID, ownerID id.OwnerID) (*models.DeathNote, error) {
	ctx, span := s.tracer.Start(ctx, "registry.ClaimOwnership")
	defer span.End()

	if _, err := s.owners.FindByID(ctx, ownerID); err != nil {
		return nil, s.loadErr(err, "owner")
	}

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		n, err := s.notes.FindByID(ctx, noteID)
		if err != nil {
			return nil, s.loadErr(err, "death note")
		}
		if err := n.CanClaim(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "cannot claim ownership")
		}
		if err := s.linkOwner(ctx, ownerID, noteID); err != nil {
			return nil, err
		}
		n.ApplyClaim(ownerID, now)
		err = s.notes.Update(ctx, n)
		if err == nil {
			s.logger.InfoContext(ctx, "ownership claimed", "note_id", noteID, "owner_id", ownerID)
			s.emit(ctx, events.Event{
				Type:       events.TypeOwnershipClaimed,
				OccurredAt: now,
				NoteID:     noteID.String(),
				OwnerID:    ownerID.String(),
			})
			return n, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting note")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "note is under heavy contention, retry")
}

// RejectOwnership severs the link between a note and its current owner.
// Both sides are cleared; the owner record is written first and the note
// last. A stale link (the owner record pointing at a different note)
// surfaces as a conflict instead of being cleared blindly.
func (s *Service) RejectOwnership(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error) {
	ctx, span := s.tracer.Start(ctx, "registry.RejectOwnership")
	defer span.End()

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		n, err := s.notes.FindByID(ctx, noteID)
		if err != nil {
			return nil, s.loadErr(err, "death note")
		}
		if !n.Owned() {
			return nil, dErrors.New(dErrors.CodeConflict, "death note has no owner to reject")
		}
		owner, err := s.owners.FindByID(ctx, *n.OwnerID)
		if err != nil {
			return nil, s.loadErr(err, "owner")
		}
		if err := n.CanReject(owner); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "cannot reject ownership")
		}

		owner.UnlinkNote(now)
		if err := s.owners.Update(ctx, owner); err != nil {
			if errors.Is(err, sentinel.ErrVersionMismatch) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting owner")
		}
		n.ApplyReject(now)
		err = s.notes.Update(ctx, n)
		if err == nil {
			s.logger.InfoContext(ctx, "ownership rejected", "note_id", noteID, "owner_id", owner.ID)
			s.emit(ctx, events.Event{
				Type:       events.TypeOwnershipRejected,
				OccurredAt: now,
				NoteID:     noteID.String(),
				OwnerID:    owner.ID.String(),
			})
			return n, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			// The owner side is already cleared; the retry will see the
			// stale link and fail with a conflict, which is the recoverable
			// inconsistency the caller is told to expect.
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting note")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "note is under heavy contention, retry")
}

// TradeEyes records the irreversible shinigami-eyes deal for an owner.
func (s *Service) TradeEyes(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	ctx, span := s.tracer.Start(ctx, "registry.TradeEyes")
	defer span.End()

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		o, err := s.owners.FindByID(ctx, ownerID)
		if err != nil {
			return nil, s.loadErr(err, "owner")
		}
		if err := o.CanTradeEyes(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "cannot trade for shinigami eyes")
		}
		o.ApplyTradeEyes(now)
		err = s.owners.Update(ctx, o)
		if err == nil {
			s.logger.InfoContext(ctx, "shinigami eyes traded", "owner_id", ownerID)
			s.emit(ctx, events.Event{
				Type:       events.TypeEyesTraded,
				OccurredAt: now,
				OwnerID:    ownerID.String(),
			})
			return o, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting owner")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "owner record is under heavy contention, retry")
}

// CreateOwner registers a new owner record with no note.
func (s *Service) CreateOwner(ctx context.Context, name string) (*models.Owner, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "owner name is required")
	}
	now := requestcontext.Now(ctx)
	o, err := models.NewOwner(id.NewOwnerID(), name, nil, now)
	if err != nil {
		return nil, err
	}
	if err := s.owners.Create(ctx, o); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting owner")
	}
	return o, nil
}

// GetNote returns a note by id.
func (s *Service) GetNote(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error) {
	n, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, s.loadErr(err, "death note")
	}
	return n, nil
}

// ListNotes returns every note in the registry.
func (s *Service) ListNotes(ctx context.Context) ([]*models.DeathNote, error) {
	notes, err := s.notes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing notes")
	}
	return notes, nil
}

// GetOwner returns an owner by id.
func (s *Service) GetOwner(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	o, err := s.owners.FindByID(ctx, ownerID)
	if err != nil {
		return nil, s.loadErr(err, "owner")
	}
	return o, nil
}

// linkOwner points the owner record at noteID, retrying on version races.
func (s *Service) linkOwner(ctx context.Context, ownerID id.OwnerID, noteID id.NoteID) error {
	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		o, err := s.owners.FindByID(ctx, ownerID)
		if err != nil {
			return s.loadErr(err, "owner")
		}
		if o.NoteID != nil && *o.NoteID == noteID {
			return nil
		}
		if o.NoteID != nil {
			return dErrors.New(dErrors.CodeConflict, "owner already holds a different note")
		}
		o.LinkNote(noteID, now)
		err = s.owners.Update(ctx, o)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting owner")
	}
	return dErrors.New(dErrors.CodeConflict, "owner record is under heavy contention, retry")
}
