package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"deathnote/internal/registry/events"
	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store/note"
	"deathnote/internal/registry/store/owner"
	"deathnote/internal/registry/store/person"
	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
	"deathnote/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	persons *person.InMemory
	notes   *note.InMemory
	owners  *owner.InMemory
	sink    *events.Memory
	svc     *Service
	now     time.Time
	ctx     context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.persons = person.NewInMemory()
	s.notes = note.NewInMemory()
	s.owners = owner.NewInMemory()
	s.sink = events.NewMemory()
	s.svc = New(s.persons, s.notes, s.owners, DefaultConfig(),
		WithEventPublisher(s.sink))
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

// at shifts the request clock by d relative to the suite's base time.
func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *ServiceSuite) newNote() *models.DeathNote {
	n, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), nil)
	s.Require().NoError(err)
	return n
}

func (s *ServiceSuite) newOwner(name string) *models.Owner {
	o, err := s.svc.CreateOwner(s.ctx, name)
	s.Require().NoError(err)
	return o
}

func (s *ServiceSuite) TestRegister() {
	n := s.newNote()

	s.Run("creates a pending person with the default deadline and cause", func() {
		p, err := s.svc.Register(s.ctx, "Lind L. Tailor", "", n.ID)
		s.Require().NoError(err)

		s.Equal(models.StatusPending, p.Status)
		s.True(p.Alive)
		s.Equal(models.DefaultCauseOfDeath, p.CauseOfDeath)
		s.Require().NotNil(p.ScheduledDeathTime)
		s.Equal(s.now.Add(40*time.Second), *p.ScheduledDeathTime)
		s.Equal(s.now, p.EntryTime)

		stored, err := s.notes.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.True(stored.HasPerson(p.ID))

		emitted := s.sink.OfType(events.TypePersonRegistered)
		s.Require().Len(emitted, 1)
		s.Equal(p.ID.String(), emitted[0].PersonID)
	})

	s.Run("rejects an empty name", func() {
		_, err := s.svc.Register(s.ctx, "", "", n.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown note", func() {
		_, err := s.svc.Register(s.ctx, "Kiichiro Osoreda", "", id.NewNoteID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("carries the photo reference opaquely", func() {
		p, err := s.svc.Register(s.ctx, "Raye Penber", "photos/penber.jpg", n.ID)
		s.Require().NoError(err)
		s.Equal("photos/penber.jpg", p.FacePhoto)
		s.Equal(models.StatusPending, p.Status)
	})
}

func (s *ServiceSuite) TestBeginDetailSpecification() {
	n := s.newNote()

	s.Run("extends the deadline relative to entry time", func() {
		p, err := s.svc.Register(s.ctx, "Naomi Misora", "", n.ID)
		s.Require().NoError(err)

		updated, err := s.svc.BeginDetailSpecification(s.at(10*time.Second), p.ID)
		s.Require().NoError(err)

		s.Equal(models.StatusAwaitingDetails, updated.Status)
		s.True(updated.Alive)
		s.Require().NotNil(updated.ScheduledDeathTime)
		s.Equal(p.EntryTime.Add(400*time.Second), *updated.ScheduledDeathTime)
	})

	s.Run("is idempotent when already awaiting details", func() {
		p, err := s.svc.Register(s.ctx, "Kanzo Mogi", "", n.ID)
		s.Require().NoError(err)

		first, err := s.svc.BeginDetailSpecification(s.ctx, p.ID)
		s.Require().NoError(err)
		second, err := s.svc.BeginDetailSpecification(s.ctx, p.ID)
		s.Require().NoError(err)

		s.Equal(first.ScheduledDeathTime, second.ScheduledDeathTime)
		s.Equal(first.Version, second.Version)
	})

	s.Run("is a no-op on an already dead person", func() {
		p, err := s.svc.Register(s.ctx, "Shuichi Aizawa", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(-time.Hour), "", "")
		s.Require().NoError(err)

		got, err := s.svc.BeginDetailSpecification(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDeadExplicit, got.Status)
		s.False(got.Alive)
	})

	s.Run("conflicts from an explicitly scheduled state", func() {
		p, err := s.svc.Register(s.ctx, "Touta Matsuda", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(time.Hour), "", "")
		s.Require().NoError(err)

		_, err = s.svc.BeginDetailSpecification(s.ctx, p.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("returns not found for an unknown person", func() {
		_, err := s.svc.BeginDetailSpecification(s.ctx, id.NewPersonID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSpecifyDeath() {
	n := s.newNote()

	s.Run("past target kills immediately with the target as death date", func() {
		p, err := s.svc.Register(s.ctx, "Light Yagami", "", n.ID)
		s.Require().NoError(err)

		target := s.now.Add(-2 * time.Minute)
		dead, err := s.svc.SpecifyDeath(s.ctx, p.ID, target, "shot during arrest", "gunshot")
		s.Require().NoError(err)

		s.Equal(models.StatusDeadExplicit, dead.Status)
		s.False(dead.Alive)
		s.Require().NotNil(dead.DeathDate)
		s.Equal(target, *dead.DeathDate)
		s.Nil(dead.ScheduledDeathTime)
		s.Equal("gunshot", dead.CauseOfDeath)
		s.Equal("shot during arrest", dead.DeathDetails)

		emitted := s.sink.OfType(events.TypeDeathFinalized)
		s.Require().NotEmpty(emitted)
		s.Equal(dead.ID.String(), emitted[len(emitted)-1].PersonID)
	})

	s.Run("target within the tolerance window counts as past", func() {
		p, err := s.svc.Register(s.ctx, "Misa Amane", "", n.ID)
		s.Require().NoError(err)

		target := s.now.Add(500 * time.Millisecond)
		dead, err := s.svc.SpecifyDeath(s.ctx, p.ID, target, "", "")
		s.Require().NoError(err)
		s.Equal(models.StatusDeadExplicit, dead.Status)
		s.Equal(target, *dead.DeathDate)
	})

	s.Run("future target reschedules without killing", func() {
		p, err := s.svc.Register(s.ctx, "Kyosuke Higuchi", "", n.ID)
		s.Require().NoError(err)

		target := s.now.Add(30 * time.Minute)
		scheduled, err := s.svc.SpecifyDeath(s.ctx, p.ID, target, "traffic accident on the highway", "accident")
		s.Require().NoError(err)

		s.Equal(models.StatusScheduledExplicit, scheduled.Status)
		s.True(scheduled.Alive)
		s.Require().NotNil(scheduled.ScheduledDeathTime)
		s.Equal(target, *scheduled.ScheduledDeathTime)
		s.Nil(scheduled.DeathDate)

		s.Require().Len(s.sink.OfType(events.TypeDeathScheduled), 1)
	})

	s.Run("empty details and cause keep the registration defaults", func() {
		p, err := s.svc.Register(s.ctx, "Hirokazu Ukita", "", n.ID)
		s.Require().NoError(err)

		dead, err := s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(-time.Second), "", "")
		s.Require().NoError(err)
		s.Equal(models.DefaultCauseOfDeath, dead.CauseOfDeath)
	})

	s.Run("works from the awaiting-details state", func() {
		p, err := s.svc.Register(s.ctx, "Soichiro Yagami", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.BeginDetailSpecification(s.ctx, p.ID)
		s.Require().NoError(err)

		dead, err := s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(-time.Minute), "died protecting the task force", "gunshot")
		s.Require().NoError(err)
		s.Equal(models.StatusDeadExplicit, dead.Status)
	})

	s.Run("rejects a zero target", func() {
		p, err := s.svc.Register(s.ctx, "Aiber", "", n.ID)
		s.Require().NoError(err)

		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, time.Time{}, "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("conflicts on an already dead person", func() {
		p, err := s.svc.Register(s.ctx, "Wedy", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(-time.Minute), "", "")
		s.Require().NoError(err)

		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(time.Hour), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestFinalizeOverdue() {
	n := s.newNote()

	s.Run("finalizes an overdue pending person as timeout", func() {
		p, err := s.svc.Register(s.ctx, "Takuo Shibuimaru", "", n.ID)
		s.Require().NoError(err)

		sweepTime := s.now.Add(41 * time.Second)
		dead, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, sweepTime)
		s.Require().NoError(err)
		s.True(finalized)
		s.Equal(models.StatusDeadTimeout, dead.Status)
		s.False(dead.Alive)
		s.Require().NotNil(dead.DeathDate)
		s.Equal(s.now.Add(40*time.Second), *dead.DeathDate)
	})

	s.Run("finalizes an overdue explicit schedule as explicit death", func() {
		p, err := s.svc.Register(s.ctx, "Kyu Nishida", "", n.ID)
		s.Require().NoError(err)
		target := s.now.Add(10 * time.Second)
		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, target, "", "")
		s.Require().NoError(err)

		dead, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(15*time.Second))
		s.Require().NoError(err)
		s.True(finalized)
		s.Equal(models.StatusDeadExplicit, dead.Status)
		s.Equal(target, *dead.DeathDate)
	})

	s.Run("is a no-op on an already dead person", func() {
		p, err := s.svc.Register(s.ctx, "Roy", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(-time.Minute), "", "")
		s.Require().NoError(err)

		got, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.False(finalized)
		s.Equal(models.StatusDeadExplicit, got.Status)
	})

	s.Run("skips a person whose deadline has not elapsed", func() {
		p, err := s.svc.Register(s.ctx, "Zakk", "", n.ID)
		s.Require().NoError(err)

		_, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(5*time.Second))
		s.Require().NoError(err)
		s.False(finalized)
	})

	s.Run("awaiting-details person survives past the default deadline", func() {
		p, err := s.svc.Register(s.ctx, "Carol", "", n.ID)
		s.Require().NoError(err)
		_, err = s.svc.BeginDetailSpecification(s.at(10*time.Second), p.ID)
		s.Require().NoError(err)

		_, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(41*time.Second))
		s.Require().NoError(err)
		s.False(finalized)

		got, err := s.svc.GetPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(got.Alive)
		s.Equal(models.StatusAwaitingDetails, got.Status)
	})
}

func (s *ServiceSuite) TestWritePerson() {
	n := s.newNote()

	s.Run("appends with set semantics", func() {
		p, err := s.svc.Register(s.ctx, "Light Yagami", "", n.ID)
		s.Require().NoError(err)

		other, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), nil)
		s.Require().NoError(err)

		first, err := s.svc.WritePerson(s.ctx, other.ID, p.ID)
		s.Require().NoError(err)
		s.Require().Len(first.PersonIDs, 1)

		second, err := s.svc.WritePerson(s.ctx, other.ID, p.ID)
		s.Require().NoError(err)
		s.Len(second.PersonIDs, 1)
	})

	s.Run("rejects writing the note's own owner", func() {
		o := s.newOwner("Light Yagami")
		owned, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), &o.ID)
		s.Require().NoError(err)

		// The owner's id written as a person: same underlying identity.
		pid := id.PersonID(uuid.UUID(o.ID))
		self, err := models.NewPerson(pid, "Light Yagami", "", owned.ID, s.now, 40*time.Second)
		s.Require().NoError(err)
		s.Require().NoError(s.persons.Create(s.ctx, self))

		_, err = s.svc.WritePerson(s.ctx, owned.ID, pid)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		stored, err := s.notes.FindByID(s.ctx, owned.ID)
		s.Require().NoError(err)
		s.False(stored.HasPerson(pid))
	})

	s.Run("returns not found for an unknown person", func() {
		_, err := s.svc.WritePerson(s.ctx, n.ID, id.NewPersonID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestInitializeNote() {
	s.Run("creates an unowned note", func() {
		n, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), nil)
		s.Require().NoError(err)
		s.False(n.Owned())
		s.Empty(n.PersonIDs)
	})

	s.Run("links the initial owner on both sides", func() {
		o := s.newOwner("Misa Amane")
		n, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), &o.ID)
		s.Require().NoError(err)
		s.True(n.Owned())

		stored, err := s.owners.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.NoteID)
		s.Equal(n.ID, *stored.NoteID)
	})

	s.Run("rejects a second initially owned note under the policy", func() {
		o := s.newOwner("Kyosuke Higuchi")
		_, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), &o.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allows a second owned note when the policy is off", func() {
		cfg := DefaultConfig()
		cfg.SingleOwnedNote = false
		svc := New(s.persons, s.notes, s.owners, cfg)

		o, err := svc.CreateOwner(s.ctx, "Teru Mikami")
		s.Require().NoError(err)
		n, err := svc.InitializeNote(s.ctx, id.NewShinigamiID(), &o.ID)
		s.Require().NoError(err)
		s.True(n.Owned())
	})

	s.Run("rejects an unknown initial owner", func() {
		unknown := id.NewOwnerID()
		_, err := s.svc.InitializeNote(s.ctx, id.NewShinigamiID(), &unknown)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestOwnership() {
	s.Run("claim assigns the note and links the owner", func() {
		n := s.newNote()
		o := s.newOwner("Light Yagami")

		claimed, err := s.svc.ClaimOwnership(s.ctx, n.ID, o.ID)
		s.Require().NoError(err)
		s.Require().NotNil(claimed.OwnerID)
		s.Equal(o.ID, *claimed.OwnerID)

		stored, err := s.owners.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.NoteID)
		s.Equal(n.ID, *stored.NoteID)
	})

	s.Run("claim conflicts on an owned note", func() {
		n := s.newNote()
		first := s.newOwner("Misa Amane")
		second := s.newOwner("Rem's second choice")

		_, err := s.svc.ClaimOwnership(s.ctx, n.ID, first.ID)
		s.Require().NoError(err)

		_, err = s.svc.ClaimOwnership(s.ctx, n.ID, second.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reject clears both sides", func() {
		n := s.newNote()
		o := s.newOwner("Light Yagami")
		_, err := s.svc.ClaimOwnership(s.ctx, n.ID, o.ID)
		s.Require().NoError(err)

		rejected, err := s.svc.RejectOwnership(s.ctx, n.ID)
		s.Require().NoError(err)
		s.False(rejected.Owned())

		stored, err := s.owners.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		s.Nil(stored.NoteID)

		s.Require().Len(s.sink.OfType(events.TypeOwnershipRejected), 1)
	})

	s.Run("reject conflicts on an unowned note", func() {
		n := s.newNote()
		_, err := s.svc.RejectOwnership(s.ctx, n.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reject conflicts on a stale owner link", func() {
		n := s.newNote()
		o := s.newOwner("Kyosuke Higuchi")
		_, err := s.svc.ClaimOwnership(s.ctx, n.ID, o.ID)
		s.Require().NoError(err)

		// Owner record drifts: it now points at a different note.
		drifted, err := s.owners.FindByID(s.ctx, o.ID)
		s.Require().NoError(err)
		drifted.LinkNote(id.NewNoteID(), s.now)
		s.Require().NoError(s.owners.Update(s.ctx, drifted))

		_, err = s.svc.RejectOwnership(s.ctx, n.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestTradeEyes() {
	s.Run("records the deal date", func() {
		o := s.newOwner("Misa Amane")
		traded, err := s.svc.TradeEyes(s.ctx, o.ID)
		s.Require().NoError(err)
		s.True(traded.HasShinigamiEyes)
		s.Require().NotNil(traded.ShinigamiEyesDealDate)
		s.Equal(s.now, *traded.ShinigamiEyesDealDate)
	})

	s.Run("the deal is irreversible and cannot repeat", func() {
		o := s.newOwner("Kyosuke Higuchi")
		_, err := s.svc.TradeEyes(s.ctx, o.ID)
		s.Require().NoError(err)

		_, err = s.svc.TradeEyes(s.ctx, o.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestDeletePerson() {
	n := s.newNote()

	s.Run("removes the person and scrubs note entries", func() {
		p, err := s.svc.Register(s.ctx, "Naomi Misora", "", n.ID)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.DeletePerson(s.ctx, p.ID))

		_, err = s.svc.GetPerson(s.ctx, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		stored, err := s.notes.FindByID(s.ctx, n.ID)
		s.Require().NoError(err)
		s.False(stored.HasPerson(p.ID))
	})

	s.Run("returns not found for an unknown person", func() {
		err := s.svc.DeletePerson(s.ctx, id.NewPersonID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestConcurrentSpecifyAndFinalize() {
	n := s.newNote()

	s.Run("specify after finalize surfaces a conflict", func() {
		p, err := s.svc.Register(s.ctx, "Bob", "", n.ID)
		s.Require().NoError(err)

		_, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(41*time.Second))
		s.Require().NoError(err)
		s.True(finalized)

		_, err = s.svc.SpecifyDeath(s.at(41*time.Second), p.ID, s.now.Add(time.Hour), "", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("finalize after a rescheduling specify is a benign skip", func() {
		p, err := s.svc.Register(s.ctx, "Alice", "", n.ID)
		s.Require().NoError(err)

		_, err = s.svc.SpecifyDeath(s.ctx, p.ID, s.now.Add(time.Hour), "", "")
		s.Require().NoError(err)

		got, finalized, err := s.svc.FinalizeOverdue(s.ctx, p.ID, s.now.Add(41*time.Second))
		s.Require().NoError(err)
		s.False(finalized)
		s.True(got.Alive)
		s.Equal(models.StatusScheduledExplicit, got.Status)
	})
}
