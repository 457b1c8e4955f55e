//go:build integration

package note_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store/note"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
	"deathnote/pkg/testutil/containers"
)

func TestPostgresNoteStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := note.NewPostgres(pg.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	newNote := func(t *testing.T, ownerID *id.OwnerID) *models.DeathNote {
		t.Helper()
		n, err := models.NewDeathNote(id.NewNoteID(), id.NewShinigamiID(), ownerID, now)
		require.NoError(t, err)
		return n
	}

	t.Run("round trips the person id set", func(t *testing.T) {
		n := newNote(t, nil)
		first := id.NewPersonID()
		second := id.NewPersonID()
		n.ApplyWritePerson(first, now)
		n.ApplyWritePerson(second, now)
		require.NoError(t, store.Create(ctx, n))

		found, err := store.FindByID(ctx, n.ID)
		require.NoError(t, err)
		require.Equal(t, []id.PersonID{first, second}, found.PersonIDs)
		require.Nil(t, found.OwnerID)
	})

	t.Run("list containing matches on membership", func(t *testing.T) {
		target := id.NewPersonID()

		with := newNote(t, nil)
		with.ApplyWritePerson(target, now)
		require.NoError(t, store.Create(ctx, with))

		without := newNote(t, nil)
		without.ApplyWritePerson(id.NewPersonID(), now)
		require.NoError(t, store.Create(ctx, without))

		notes, err := store.ListContaining(ctx, target)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		require.Equal(t, with.ID, notes[0].ID)
	})

	t.Run("count owned sees only claimed notes", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))

		require.NoError(t, store.Create(ctx, newNote(t, nil)))
		owned, err := store.CountOwned(ctx)
		require.NoError(t, err)
		require.Zero(t, owned)

		ownerID := id.NewOwnerID()
		require.NoError(t, store.Create(ctx, newNote(t, &ownerID)))
		owned, err = store.CountOwned(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, owned)
	})

	t.Run("conditional update enforces versions", func(t *testing.T) {
		n := newNote(t, nil)
		require.NoError(t, store.Create(ctx, n))

		stale := n.Clone()
		n.ApplyWritePerson(id.NewPersonID(), now)
		require.NoError(t, store.Update(ctx, n))

		stale.ApplyClaim(id.NewOwnerID(), now)
		require.ErrorIs(t, store.Update(ctx, stale), sentinel.ErrVersionMismatch)
	})

	t.Run("unknown note is not found", func(t *testing.T) {
		_, err := store.FindByID(ctx, id.NewNoteID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
