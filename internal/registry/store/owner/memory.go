package owner

import (
	"context"
	"sync"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded owner store. The registry tracks very few
// owner records (historically exactly one), so lookups scan the map.
type InMemory struct {
	mu     sync.RWMutex
	owners map[id.OwnerID]*models.Owner
}

func NewInMemory() *InMemory {
	return &InMemory{owners: make(map[id.OwnerID]*models.Owner)}
}

// Create stores a new owner at version 1.
func (s *InMemory) Create(ctx context.Context, o *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[o.ID]; exists {
		return sentinel.ErrConflict
	}
	o.Version = 1
	s.owners[o.ID] = o.Clone()
	return nil
}

// FindByID returns a copy of the owner or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[ownerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return o.Clone(), nil
}

// FindByNote returns the owner whose note link points at noteID.
func (s *InMemory) FindByNote(ctx context.Context, noteID id.NoteID) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.owners {
		if o.NoteID != nil && *o.NoteID == noteID {
			return o.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update writes o conditional on its loaded version, advancing it on
// success. See the person store for the full contract.
func (s *InMemory) Update(ctx context.Context, o *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.owners[o.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != o.Version {
		return sentinel.ErrVersionMismatch
	}
	o.Version++
	s.owners[o.ID] = o.Clone()
	return nil
}
