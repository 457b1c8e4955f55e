package service

import (
	"context"
	"errors"
	"time"

	"deathnote/internal/registry/events"
	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
	"deathnote/pkg/platform/sentinel"
	"deathnote/pkg/requestcontext"
)

// Register creates a person in the pending state and writes them into the
// given note. The person record is persisted first; the note append happens
// last so a crash between the two leaves a person without a note entry,
// which WritePerson can repair.
func (s *Service) Register(ctx context.Context, name, facePhoto string, noteID id.NoteID) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Register")
	defer span.End()

	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "person name is required")
	}
	if _, err := s.notes.FindByID(ctx, noteID); err != nil {
		return nil, s.loadErr(err, "death note")
	}

	now := requestcontext.Now(ctx)
	p, err := models.NewPerson(id.NewPersonID(), name, facePhoto, noteID, now, s.cfg.DefaultDeadline)
	if err != nil {
		return nil, err
	}
	if err := s.persons.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting person")
	}
	if err := s.appendToNote(ctx, noteID, p.ID, now); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementPersonsRegistered()
	}
	s.logger.InfoContext(ctx, "person registered",
		"person_id", p.ID, "note_id", noteID, "scheduled_death_time", p.ScheduledDeathTime)
	s.emit(ctx, events.Event{
		Type:       events.TypePersonRegistered,
		OccurredAt: now,
		PersonID:   p.ID.String(),
		NoteID:     noteID.String(),
		Status:     string(p.Status),
	})
	return p, nil
}

// WritePerson registers an existing person into a note. Appending is
// idempotent; writing the note's own owner fails with a conflict.
func (s *Service) WritePerson(ctx context.Context, noteID id.NoteID, personID id.PersonID) (*models.DeathNote, error) {
	ctx, span := s.tracer.Start(ctx, "registry.WritePerson")
	defer span.End()

	if _, err := s.persons.FindByID(ctx, personID); err != nil {
		return nil, s.loadErr(err, "person")
	}

	now := requestcontext.Now(ctx)
	if err := s.appendToNote(ctx, noteID, personID, now); err != nil {
		return nil, err
	}
	n, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return nil, s.loadErr(err, "death note")
	}

	s.emit(ctx, events.Event{
		Type:       events.TypePersonWritten,
		OccurredAt: now,
		PersonID:   personID.String(),
		NoteID:     noteID.String(),
	})
	return n, nil
}

// appendToNote loads the note, appends personID with set semantics, and
// writes it back, retrying from a fresh read on version mismatch.
func (s *Service) appendToNote(ctx context.Context, noteID id.NoteID, personID id.PersonID, now time.Time) error {
	for attempt := 0; attempt < writeAttempts; attempt++ {
		n, err := s.notes.FindByID(ctx, noteID)
		if err != nil {
			return s.loadErr(err, "death note")
		}
		if err := n.CanWritePerson(personID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "cannot write person into note")
		}
		if n.HasPerson(personID) {
			return nil
		}
		n.ApplyWritePerson(personID, now)
		err = s.notes.Update(ctx, n)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting note")
	}
	return dErrors.New(dErrors.CodeConflict, "note is under heavy contention, retry")
}

// BeginDetailSpecification moves a pending person into the awaiting-details
// state and extends their deadline relative to entry time. Calling it on a
// person already awaiting details, or already dead, is a no-op that returns
// the current record.
func (s *Service) BeginDetailSpecification(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "registry.BeginDetailSpecification")
	defer span.End()

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		p, err := s.persons.FindByID(ctx, personID)
		if err != nil {
			return nil, s.loadErr(err, "person")
		}
		switch err := p.CanBeginDetails(); {
		case errors.Is(err, models.ErrNoOp):
			return p, nil
		case err != nil:
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "cannot begin detail specification")
		}
		p.ApplyBeginDetails(now, s.cfg.DetailDeadline)
		err = s.persons.Update(ctx, p)
		if err == nil {
			s.logger.InfoContext(ctx, "detail specification opened",
				"person_id", personID, "scheduled_death_time", p.ScheduledDeathTime)
			s.emit(ctx, events.Event{
				Type:       events.TypeDetailsOpened,
				OccurredAt: now,
				PersonID:   personID.String(),
				Status:     string(p.Status),
			})
			return p, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting person")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "person record is under heavy contention, retry")
}

// SpecifyDeath records an explicit death time, cause and details. A target
// at or before now (within tolerance) kills immediately; a future target
// reschedules. A person finalized by a concurrent sweep surfaces a conflict
// rather than silently overwriting the terminal record.
func (s *Service) SpecifyDeath(ctx context.Context, personID id.PersonID, target time.Time, details, cause string) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "registry.SpecifyDeath")
	defer span.End()

	if target.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "target death time is required")
	}

	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < writeAttempts; attempt++ {
		p, err := s.persons.FindByID(ctx, personID)
		if err != nil {
			return nil, s.loadErr(err, "person")
		}
		if err := p.CanSpecifyDeath(target); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "cannot specify death")
		}
		p.ApplySpecifyDeath(target, details, cause, now)
		err = s.persons.Update(ctx, p)
		if err == nil {
			s.recordSpecified(ctx, p, now)
			return p, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting person")
	}
	return nil, dErrors.New(dErrors.CodeConflict, "person record is under heavy contention, retry")
}

func (s *Service) recordSpecified(ctx context.Context, p *models.Person, now time.Time) {
	if p.Terminal() {
		if s.metrics != nil {
			s.metrics.IncrementDeathsFinalized(string(p.Status))
		}
		s.logger.InfoContext(ctx, "death specified in the past, finalized immediately",
			"person_id", p.ID, "death_date", p.DeathDate, "cause", p.CauseOfDeath)
		s.emit(ctx, events.Event{
			Type:       events.TypeDeathFinalized,
			OccurredAt: now,
			PersonID:   p.ID.String(),
			Status:     string(p.Status),
			Cause:      p.CauseOfDeath,
		})
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementDeathsScheduled()
	}
	s.logger.InfoContext(ctx, "death scheduled",
		"person_id", p.ID, "scheduled_death_time", p.ScheduledDeathTime, "cause", p.CauseOfDeath)
	s.emit(ctx, events.Event{
		Type:       events.TypeDeathScheduled,
		OccurredAt: now,
		PersonID:   p.ID.String(),
		Status:     string(p.Status),
		Cause:      p.CauseOfDeath,
	})
}

// FinalizeOverdue marks a person dead because their deadline elapsed. The
// death date is the deadline itself, not the sweep time. The boolean result
// reports whether this call performed the finalization: false means someone
// else already finalized the record, or it stopped being due before the
// write landed. Both are benign outcomes for the scheduler.
func (s *Service) FinalizeOverdue(ctx context.Context, personID id.PersonID, now time.Time) (*models.Person, bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.FinalizeOverdue")
	defer span.End()

	for attempt := 0; attempt < writeAttempts; attempt++ {
		p, err := s.persons.FindByID(ctx, personID)
		if err != nil {
			return nil, false, s.loadErr(err, "person")
		}
		switch err := p.CanFinalize(now); {
		case errors.Is(err, models.ErrNoOp):
			return p, false, nil
		case err != nil:
			if p.Consistent() {
				// Rescheduled or respecified under us; no longer due.
				return p, false, nil
			}
			return nil, false, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "person record is inconsistent")
		}
		p.ApplyFinalize(now)
		err = s.persons.Update(ctx, p)
		if err == nil {
			if s.metrics != nil {
				s.metrics.IncrementDeathsFinalized(string(p.Status))
			}
			s.logger.InfoContext(ctx, "overdue person finalized",
				"person_id", personID, "status", p.Status, "death_date", p.DeathDate)
			s.emit(ctx, events.Event{
				Type:       events.TypeDeathFinalized,
				OccurredAt: now,
				PersonID:   personID.String(),
				Status:     string(p.Status),
				Cause:      p.CauseOfDeath,
			})
			return p, true, nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "persisting person")
	}
	return nil, false, dErrors.New(dErrors.CodeConflict, "person record is under heavy contention")
}

// GetPerson returns a person by id.
func (s *Service) GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return nil, s.loadErr(err, "person")
	}
	return p, nil
}

// ListPersons returns every person in the registry.
func (s *Service) ListPersons(ctx context.Context) ([]*models.Person, error) {
	people, err := s.persons.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing persons")
	}
	return people, nil
}

// DeletePerson removes a person and scrubs their id from every note that
// contains it. The note cleanup runs first so a partial failure leaves the
// person intact and the operation retryable.
func (s *Service) DeletePerson(ctx context.Context, personID id.PersonID) error {
	ctx, span := s.tracer.Start(ctx, "registry.DeletePerson")
	defer span.End()

	if _, err := s.persons.FindByID(ctx, personID); err != nil {
		return s.loadErr(err, "person")
	}

	now := requestcontext.Now(ctx)
	containing, err := s.notes.ListContaining(ctx, personID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "listing notes")
	}
	for _, stale := range containing {
		if err := s.removeFromNote(ctx, stale.ID, personID, now); err != nil {
			return err
		}
	}
	if err := s.persons.Delete(ctx, personID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "deleting person")
	}

	s.logger.InfoContext(ctx, "person deleted", "person_id", personID)
	s.emit(ctx, events.Event{
		Type:       events.TypePersonDeleted,
		OccurredAt: now,
		PersonID:   personID.String(),
	})
	return nil
}

func (s *Service) removeFromNote(ctx context.Context, noteID id.NoteID, personID id.PersonID, now time.Time) error {
	for attempt := 0; attempt < writeAttempts; attempt++ {
		n, err := s.notes.FindByID(ctx, noteID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return s.loadErr(err, "death note")
		}
		if !n.RemovePerson(personID, now) {
			return nil
		}
		err = s.notes.Update(ctx, n)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting note")
	}
	return dErrors.New(dErrors.CodeConflict, "note is under heavy contention, retry")
}

// loadErr translates a store read failure into a coded domain error.
func (s *Service) loadErr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "loading "+what)
}
