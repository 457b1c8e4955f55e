package note

import (
	"context"
	"sync"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded death-note store with the same conditional
// version-write contract as the person store.
type InMemory struct {
	mu    sync.RWMutex
	notes map[id.NoteID]*models.DeathNote
}

func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[id.NoteID]*models.DeathNote)}
}

// Create stores a new note at version 1.
func (s *InMemory) Create(ctx context.Context, n *models.DeathNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notes[n.ID]; exists {
		return sentinel.ErrConflict
	}
	n.Version = 1
	s.notes[n.ID] = n.Clone()
	return nil
}

// FindByID returns a copy of the note or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[noteID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return n.Clone(), nil
}

// List returns all notes in no particular order.
func (s *InMemory) List(ctx context.Context) ([]*models.DeathNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DeathNote, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.Clone())
	}
	return out, nil
}

// ListContaining returns every note that has personID registered. Used by
// the cross-entity cleanup on person deletion.
func (s *InMemory) ListContaining(ctx context.Context, personID id.PersonID) ([]*models.DeathNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DeathNote
	for _, n := range s.notes {
		if n.HasPerson(personID) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// CountOwned returns how many notes currently have a human owner. The
// single-owned-note policy consults it before creating an owned note.
func (s *InMemory) CountOwned(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notes {
		if n.Owned() {
			count++
		}
	}
	return count, nil
}

// Update writes n conditional on its loaded version, advancing it on
// success. See the person store for the full contract.
func (s *InMemory) Update(ctx context.Context, n *models.DeathNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.notes[n.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != n.Version {
		return sentinel.ErrVersionMismatch
	}
	n.Version++
	s.notes[n.ID] = n.Clone()
	return nil
}
