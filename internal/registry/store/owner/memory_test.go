package owner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
)

type OwnerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *OwnerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestOwnerStoreSuite(t *testing.T) {
	suite.Run(t, new(OwnerStoreSuite))
}

func (s *OwnerStoreSuite) newOwner(name string, noteID *id.NoteID) *models.Owner {
	o, err := models.NewOwner(id.NewOwnerID(), name, noteID, s.now)
	s.Require().NoError(err)
	return o
}

func (s *OwnerStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds owner by ID", func() {
		o := s.newOwner("Light Yagami", nil)
		s.Require().NoError(s.store.Create(s.ctx, o))

		found, err := s.store.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Equal("Light Yagami", found.Name)
	})

	s.Run("finds owner by note link", func() {
		noteID := id.NewNoteID()
		o := s.newOwner("Misa Amane", &noteID)
		s.Require().NoError(s.store.Create(s.ctx, o))

		found, err := s.store.FindByNote(s.ctx, noteID)
		s.Require().NoError(err)
		s.Equal(o.ID, found.ID)
	})

	s.Run("returns ErrNotFound when no owner links the note", func() {
		_, err := s.store.FindByNote(s.ctx, id.NewNoteID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OwnerStoreSuite) TestConditionalUpdate() {
	o := s.newOwner("Light Yagami", nil)
	s.Require().NoError(s.store.Create(s.ctx, o))

	winner, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)
	loser, err := s.store.FindByID(s.ctx, o.ID)
	s.Require().NoError(err)

	winner.ApplyTradeEyes(s.now)
	s.Require().NoError(s.store.Update(s.ctx, winner))

	loser.ApplyTradeEyes(s.now)
	s.ErrorIs(s.store.Update(s.ctx, loser), sentinel.ErrVersionMismatch)
}
