package person

import (
	"context"
	"sync"
	"time"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded person store for tests and single-process
// deployments. It enforces the same conditional-write discipline as the
// Postgres store: Update succeeds only when the caller's loaded version
// matches the stored one, so racing writers observe ErrVersionMismatch
// instead of silently overwriting each other.
type InMemory struct {
	mu     sync.RWMutex
	people map[id.PersonID]*models.Person
}

func NewInMemory() *InMemory {
	return &InMemory{people: make(map[id.PersonID]*models.Person)}
}

// Create stores a new person at version 1.
func (s *InMemory) Create(ctx context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.people[p.ID]; exists {
		return sentinel.ErrConflict
	}
	p.Version = 1
	s.people[p.ID] = p.Clone()
	return nil
}

// FindByID returns a copy of the person or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// List returns all persons in no particular order.
func (s *InMemory) List(ctx context.Context) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Person, 0, len(s.people))
	for _, p := range s.people {
		out = append(out, p.Clone())
	}
	return out, nil
}

// ListDue returns living persons whose deadline has elapsed as of now,
// across every non-terminal status. This is the scheduler's scan.
func (s *InMemory) ListDue(ctx context.Context, now time.Time) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*models.Person
	for _, p := range s.people {
		if p.Alive && p.ScheduledDeathTime != nil && !p.ScheduledDeathTime.After(now) {
			due = append(due, p.Clone())
		}
	}
	return due, nil
}

// Update writes p conditional on its loaded version. On success the stored
// record and p itself advance to version+1; a stale version returns
// sentinel.ErrVersionMismatch and leaves the stored record untouched.
func (s *InMemory) Update(ctx context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.people[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != p.Version {
		return sentinel.ErrVersionMismatch
	}
	p.Version++
	s.people[p.ID] = p.Clone()
	return nil
}

// Delete removes the person entirely.
func (s *InMemory) Delete(ctx context.Context, personID id.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.people[personID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.people, personID)
	return nil
}
