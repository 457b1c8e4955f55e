//go:build integration

package person_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deathnote/internal/registry/models"
	"deathnote/internal/registry/store/person"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/sentinel"
	"deathnote/pkg/testutil/containers"
)

func TestCachedPersonStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	newStores := func(t *testing.T) (*person.InMemory, *person.Cached) {
		t.Helper()
		require.NoError(t, rc.FlushAll(ctx))
		inner := person.NewInMemory()
		return inner, person.NewCached(inner, rc.Client)
	}

	newPerson := func(t *testing.T) *models.Person {
		t.Helper()
		p, err := models.NewPerson(id.NewPersonID(), "Lind L. Tailor", "", id.NewNoteID(), now, 40*time.Second)
		require.NoError(t, err)
		return p
	}

	t.Run("read through populates the cache", func(t *testing.T) {
		inner, cached := newStores(t)
		p := newPerson(t)
		require.NoError(t, cached.Create(ctx, p))

		first, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.ID, first.ID)

		// A write that sidesteps the cache is not visible until the
		// entry expires or is invalidated.
		direct, err := inner.FindByID(ctx, p.ID)
		require.NoError(t, err)
		direct.ApplyFinalize(now.Add(time.Minute))
		require.NoError(t, inner.Update(ctx, direct))

		stale, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, stale.Alive)
	})

	t.Run("update invalidates the cached entry", func(t *testing.T) {
		_, cached := newStores(t)
		p := newPerson(t)
		require.NoError(t, cached.Create(ctx, p))

		loaded, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)

		loaded.ApplyFinalize(now.Add(time.Minute))
		require.NoError(t, cached.Update(ctx, loaded))

		fresh, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.False(t, fresh.Alive)
		require.Equal(t, models.StatusDeadTimeout, fresh.Status)
	})

	t.Run("a lost version race is retryable through the cache", func(t *testing.T) {
		inner, cached := newStores(t)
		p := newPerson(t)
		require.NoError(t, cached.Create(ctx, p))

		// The loser's copy comes from the cache.
		loser, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)

		// A concurrent writer wins the race through the backing store,
		// leaving the cached entry one version behind.
		winner, err := inner.FindByID(ctx, p.ID)
		require.NoError(t, err)
		winner.ApplyBeginDetails(now, 400*time.Second)
		require.NoError(t, inner.Update(ctx, winner))

		loser.ApplyFinalize(now.Add(time.Minute))
		require.ErrorIs(t, cached.Update(ctx, loser), sentinel.ErrVersionMismatch)

		// The failed write dropped the entry, so the retry's re-read
		// observes the winner's version and the conditional write lands.
		reread, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, winner.Version, reread.Version)
		require.Equal(t, models.StatusAwaitingDetails, reread.Status)

		reread.ApplyFinalize(now.Add(10 * time.Minute))
		require.NoError(t, cached.Update(ctx, reread))
	})

	t.Run("delete invalidates the cached entry", func(t *testing.T) {
		_, cached := newStores(t)
		p := newPerson(t)
		require.NoError(t, cached.Create(ctx, p))

		_, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)

		require.NoError(t, cached.Delete(ctx, p.ID))
		_, err = cached.FindByID(ctx, p.ID)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("due listing always hits the backing store", func(t *testing.T) {
		inner, cached := newStores(t)
		p := newPerson(t)
		require.NoError(t, cached.Create(ctx, p))

		// Warm the cache, then finalize behind it. The due set must
		// reflect the backing store, not the cached record.
		_, err := cached.FindByID(ctx, p.ID)
		require.NoError(t, err)

		direct, err := inner.FindByID(ctx, p.ID)
		require.NoError(t, err)
		direct.ApplyFinalize(now.Add(time.Minute))
		require.NoError(t, inner.Update(ctx, direct))

		due, err := cached.ListDue(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		require.Empty(t, due)
	})
}
