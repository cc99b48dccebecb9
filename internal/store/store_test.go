package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/page-stats-service/internal/model"
	"github.com/fairyhunter13/page-stats-service/internal/store"
)

// testStoreConformance runs the Store contract against an implementation.
// Both the Redis and in-memory stores must pass it unchanged.
func testStoreConformance(t *testing.T, newStore func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("create then get returns zeros", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 42))
		st, err := s.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{PageID: 42}, st)
	})

	t.Run("duplicate create is rejected and does not reset", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 1))
		require.NoError(t, s.Increment(ctx, 1, model.FieldLike))
		assert.ErrorIs(t, s.Create(ctx, 1), store.ErrAlreadyExists)
		st, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.LikesCount)
	})

	t.Run("get missing page", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, 404)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment counts each field independently", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 5))
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Increment(ctx, 5, model.FieldPost))
		}
		require.NoError(t, s.Increment(ctx, 5, model.FieldFollower))
		st, err := s.Get(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{PageID: 5, PostsCount: 3, FollowersCount: 1}, st)
	})

	t.Run("increment without record", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Increment(ctx, 9, model.FieldPost), store.ErrNotFound)
	})

	t.Run("decrement without record", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Decrement(ctx, 9, model.FieldPost), store.ErrNotFound)
	})

	t.Run("decrement at zero is a rejected no-op", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 2))
		assert.ErrorIs(t, s.Decrement(ctx, 2, model.FieldLike), store.ErrConditionFailed)
		st, err := s.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(0), st.LikesCount)
	})

	t.Run("decrement after increment", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 3))
		require.NoError(t, s.Increment(ctx, 3, model.FieldFollower))
		require.NoError(t, s.Decrement(ctx, 3, model.FieldFollower))
		st, err := s.Get(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(0), st.FollowersCount)
	})

	t.Run("page field has no counter", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, 4))
		assert.ErrorIs(t, s.Increment(ctx, 4, model.FieldPage), store.ErrUnknownCounter)
		assert.ErrorIs(t, s.Decrement(ctx, 4, model.FieldPage), store.ErrUnknownCounter)
	})
}

func TestMemStoreConformance(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) store.Store {
		return store.NewMemStore()
	})
}

func TestMemStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	require.NoError(t, s.Create(ctx, 1))

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Increment(ctx, 1, model.FieldPost)
		}()
	}
	wg.Wait()

	st, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(n), st.PostsCount)
}

// Concurrent decrements against a smaller balance: exactly the available
// amount is applied, the rest rejected, and the counter never goes negative.
func TestMemStoreConcurrentGuardedDecrements(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	require.NoError(t, s.Create(ctx, 1))
	const available = 50
	for i := 0; i < available; i++ {
		require.NoError(t, s.Increment(ctx, 1, model.FieldLike))
	}

	const attempts = 70
	var rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Decrement(ctx, 1, model.FieldLike); err != nil {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	st, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.LikesCount)
	assert.Equal(t, int64(attempts-available), rejected.Load())
}
