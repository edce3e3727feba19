// Package storetest holds the behavioural checks every identity store must pass.
// Backend tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

// Embedding returns a deterministic test vector of the given dimension.
func Embedding(seed float32, dim int) []float32 {
	e := make([]float32, dim)
	for i := range e {
		e[i] = seed + float32(i)/float32(dim)
	}
	return e
}

// wave returns a unit-length vector with mixed signs; different phases give
// clearly different directions.
func wave(phase float64, dim int) []float32 {
	e := make([]float32, dim)
	for i := range e {
		e[i] = float32(math.Sin(float64(i)*0.37 + phase))
	}
	normalized, err := facematch.Normalize(e)
	if err != nil {
		panic(err)
	}
	return normalized
}

// Run exercises newStore against the IdentityWriter contract.
func Run(t *testing.T, newStore func(t *testing.T) database.IdentityWriter) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Empty", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		all, err := store.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		exists, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("InsertAndRead", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		alice := database.EnrolledIdentity{
			Username:     "alice",
			Embedding:    Embedding(0.1, 512),
			BBox:         []float64{10, 20, 110, 140},
			RegisteredAt: base,
		}
		bob := database.EnrolledIdentity{
			Username:     "bob",
			Embedding:    Embedding(-0.3, 512),
			BBox:         []float64{1.5, 2.5, 30, 40},
			RegisteredAt: base.Add(time.Minute),
		}
		// inserted out of order; reads are ordered by registration time
		require.NoError(t, store.Insert(ctx, bob))
		require.NoError(t, store.Insert(ctx, alice))

		exists, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.Exists(ctx, "carol")
		require.NoError(t, err)
		assert.False(t, exists)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "alice", list[0].Username)
		assert.Equal(t, "bob", list[1].Username)
		assert.True(t, base.Equal(list[0].RegisteredAt), "registered_at %v", list[0].RegisteredAt)

		all, err := store.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Username)
		assert.Equal(t, alice.Embedding, all[0].Embedding)
		assert.Equal(t, alice.BBox, all[0].BBox)
		assert.Equal(t, bob.Embedding, all[1].Embedding)
	})

	t.Run("StoredEmbeddingVerifiesAsItself", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		alice := wave(0.4, 512)
		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "bob", Embedding: wave(2.1, 512), RegisteredAt: base}))
		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "alice", Embedding: alice, RegisteredAt: base.Add(time.Second)}))

		all, err := store.All(ctx)
		require.NoError(t, err)
		candidates := make([]facematch.Candidate, 0, len(all))
		for _, id := range all {
			candidates = append(candidates, facematch.Candidate{Label: id.Username, Embedding: id.Embedding})
		}

		result, err := facematch.Verify(alice, candidates, 0.25)
		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Equal(t, "alice", result.BestLabel)
		assert.InDelta(t, 1.0, result.BestSimilarity, 1e-6)
	})

	t.Run("CountDimensionMismatches", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		n, err := store.CountDimensionMismatches(ctx, 512)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "alice", Embedding: Embedding(0.1, 512), RegisteredAt: base}))
		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "bob", Embedding: Embedding(0.2, 128), RegisteredAt: base.Add(time.Second)}))
		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "carol", Embedding: Embedding(0.3, 128), RegisteredAt: base.Add(2 * time.Second)}))

		n, err = store.CountDimensionMismatches(ctx, 512)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = store.CountDimensionMismatches(ctx, 128)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("DuplicateLeavesStoreUnchanged", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		original := database.EnrolledIdentity{Username: "alice", Embedding: Embedding(0.2, 8), RegisteredAt: base}
		require.NoError(t, store.Insert(ctx, original))

		err := store.Insert(ctx, database.EnrolledIdentity{Username: "alice", Embedding: Embedding(0.9, 8), RegisteredAt: base.Add(time.Hour)})
		require.ErrorIs(t, err, database.ErrDuplicateLabel)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		all, err := store.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, original.Embedding, all[0].Embedding)
		assert.True(t, base.Equal(all[0].RegisteredAt))
	})

	t.Run("UsernamesAreCaseSensitive", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "alice", Embedding: Embedding(0.1, 4), RegisteredAt: base}))
		require.NoError(t, store.Insert(ctx, database.EnrolledIdentity{Username: "Alice", Embedding: Embedding(0.2, 4), RegisteredAt: base.Add(time.Second)}))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ConcurrentDuplicateInserts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 8
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			succeeded  int
			duplicates int
		)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Insert(ctx, database.EnrolledIdentity{
					Username:     "racer",
					Embedding:    Embedding(float32(i), 4),
					RegisteredAt: base,
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, database.ErrDuplicateLabel):
					duplicates++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, workers-1, duplicates)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
