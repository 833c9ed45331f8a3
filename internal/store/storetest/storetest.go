// Package storetest holds the behaviour every store.RecordStore backend must
// share. Backend test files call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/store"
)

// Run executes the shared RecordStore behaviour tests.
func Run(t *testing.T, newStore func(t *testing.T) store.RecordStore) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), store.CollectionUsers, "nobody")
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("SetThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, store.CollectionUsers, "u1", store.Fields{"role": "admin", "name": "Asha"}))
		doc, err := s.Get(ctx, store.CollectionUsers, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", doc.Key)
		assert.Equal(t, "admin", doc.Fields["role"])

		// Set replaces the whole document.
		require.NoError(t, s.Set(ctx, store.CollectionUsers, "u1", store.Fields{"role": "volunteer"}))
		doc, err = s.Get(ctx, store.CollectionUsers, "u1")
		require.NoError(t, err)
		assert.Equal(t, "volunteer", doc.Fields["role"])
		assert.NotContains(t, doc.Fields, "name")
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, store.CollectionUsers, "k", store.Fields{"a": 1}))
		_, err := s.Get(ctx, store.CollectionProjects, "k")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("AddGeneratesDistinctKeys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		k1, err := s.Add(ctx, store.CollectionDonations, store.Fields{"donationAmount": 10})
		require.NoError(t, err)
		k2, err := s.Add(ctx, store.CollectionDonations, store.Fields{"donationAmount": 20})
		require.NoError(t, err)
		assert.NotEmpty(t, k1)
		assert.NotEqual(t, k1, k2)

		doc, err := s.Get(ctx, store.CollectionDonations, k2)
		require.NoError(t, err)
		assert.Equal(t, float64(20), doc.Fields["donationAmount"])
	})

	t.Run("CreateNeverOverwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Create(ctx, store.CollectionUsers, "u1", store.Fields{"role": "admin"}))
		err := s.Create(ctx, store.CollectionUsers, "u1", store.Fields{"role": "volunteer"})
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

		doc, err := s.Get(ctx, store.CollectionUsers, "u1")
		require.NoError(t, err)
		assert.Equal(t, "admin", doc.Fields["role"])
	})

	t.Run("ConcurrentCreateHasOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.Create(ctx, store.CollectionUsers, "same", store.Fields{"role": "volunteer"}); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})

	t.Run("UpdateMerges", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, store.CollectionProjects, "p1", store.Fields{"name": "Clean-up", "status": "upcoming"}))
		require.NoError(t, s.Update(ctx, store.CollectionProjects, "p1", store.Fields{"status": "completed"}))

		doc, err := s.Get(ctx, store.CollectionProjects, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Clean-up", doc.Fields["name"])
		assert.Equal(t, "completed", doc.Fields["status"])
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(context.Background(), store.CollectionProjects, "ghost", store.Fields{"status": "completed"})
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("Increment", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, store.CollectionProjects, "p1", store.Fields{"name": "Clean-up"}))
		require.NoError(t, s.Increment(ctx, store.CollectionProjects, "p1", "volunteers", 1))
		require.NoError(t, s.Increment(ctx, store.CollectionProjects, "p1", "volunteers", 1))
		require.NoError(t, s.Increment(ctx, store.CollectionProjects, "p1", "donations", 250.5))

		doc, err := s.Get(ctx, store.CollectionProjects, "p1")
		require.NoError(t, err)
		assert.Equal(t, float64(2), doc.Fields["volunteers"])
		assert.Equal(t, 250.5, doc.Fields["donations"])

		err = s.Increment(ctx, store.CollectionProjects, "ghost", "volunteers", 1)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, store.CollectionVolunteers, "v1", store.Fields{"fullName": "Ravi"}))
		require.NoError(t, s.Delete(ctx, store.CollectionVolunteers, "v1"))
		require.NoError(t, s.Delete(ctx, store.CollectionVolunteers, "v1"))

		_, err := s.Get(ctx, store.CollectionVolunteers, "v1")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("ListOrderedByKey", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, k := range []string{"c", "a", "b"} {
			require.NoError(t, s.Set(ctx, store.CollectionVolunteers, k, store.Fields{"k": k}))
		}
		docs, err := s.List(ctx, store.CollectionVolunteers)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "a", docs[0].Key)
		assert.Equal(t, "b", docs[1].Key)
		assert.Equal(t, "c", docs[2].Key)

		empty, err := s.List(ctx, store.CollectionDonations)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		s := newStore(t)
		err := s.Set(context.Background(), store.CollectionUsers, "", store.Fields{})
		assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	})
}
