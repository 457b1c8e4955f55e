//go:build integration

package owner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store/owner"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
	"deathnote/pkg/testutil/containers"
)

func TestPostgresOwnerStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := owner.NewPostgres(pg.DB)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	newOwner := func(t *testing.T, name string, noteID *id.NoteID) *models.Owner {
		t.Helper()
		o, err := models.NewOwner(id.NewOwnerID(), name, noteID, now)
		require.NoError(t, err)
		return o
	}

	t.Run("round trips the eyes deal", func(t *testing.T) {
		o := newOwner(t, "Misa Amane", nil)
		o.ApplyTradeEyes(now)
		require.NoError(t, store.Create(ctx, o))

		found, err := store.FindByID(ctx, o.ID)
		require.NoError(t, err)
		require.True(t, found.HasShinigamiEyes)
		require.NotNil(t, found.ShinigamiEyesDealDate)
		require.True(t, found.ShinigamiEyesDealDate.Equal(now))
	})

	t.Run("find by note follows the link", func(t *testing.T) {
		noteID := id.NewNoteID()
		linked := newOwner(t, "Light Yagami", &noteID)
		require.NoError(t, store.Create(ctx, linked))

		found, err := store.FindByNote(ctx, noteID)
		require.NoError(t, err)
		require.Equal(t, linked.ID, found.ID)

		_, err = store.FindByNote(ctx, id.NewNoteID())
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("conditional update enforces versions", func(t *testing.T) {
		o := newOwner(t, "Teru Mikami", nil)
		require.NoError(t, store.Create(ctx, o))

		stale := o.Clone()
		o.LinkNote(id.NewNoteID(), now)
		require.NoError(t, store.Update(ctx, o))

		stale.ApplyTradeEyes(now)
		require.ErrorIs(t, store.Update(ctx, stale), sentinel.ErrVersionMismatch)
	})

	t.Run("unlink clears the note column", func(t *testing.T) {
		noteID := id.NewNoteID()
		o := newOwner(t, "Kyosuke Higuchi", &noteID)
		require.NoError(t, store.Create(ctx, o))

		o.UnlinkNote(now)
		require.NoError(t, store.Update(ctx, o))

		found, err := store.FindByID(ctx, o.ID)
		require.NoError(t, err)
		require.Nil(t, found.NoteID)
	})
}
