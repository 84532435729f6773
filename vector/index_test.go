package vector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex() (*Index, *MemoryStore) {
	store := NewMemoryStore()
	index := NewIndex(store,
		Collection{Name: "cache", Dimensions: 3},
		Collection{Name: "catalog", Dimensions: 3},
	)
	return index, store
}

func TestIndexUpsertValidatesDimensions(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	err := index.Upsert(ctx, "cache", "k", []float32{1, 2}, nil, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = index.Upsert(ctx, "cache", "k", []float32{1, 2, 3, 4}, nil, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = index.Upsert(ctx, "cache", "k", []float32{1, 2, 3}, nil, 0)
	assert.NoError(t, err)
}

func TestIndexQueryValidatesDimensions(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	_, err := index.Query(ctx, "cache", []float32{1}, 1, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndexUnknownCollection(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	err := index.Upsert(ctx, "nope", "k", []float32{1, 2, 3}, nil, 0)
	assert.ErrorIs(t, err, ErrUnknownCollection)

	_, qerr := index.Query(ctx, "nope", []float32{1, 2, 3}, 1, nil)
	assert.ErrorIs(t, qerr, ErrUnknownCollection)

	rerr := index.Remove(ctx, "nope", "k")
	assert.ErrorIs(t, rerr, ErrUnknownCollection)
}

func TestSimilarityTransform(t *testing.T) {
	assert.Equal(t, 1.0, Similarity(0))
	assert.Equal(t, 0.5, Similarity(1))
	assert.InDelta(t, 0.1, Similarity(9), 1e-9)

	// Monotonically decreasing, bounded in (0, 1].
	assert.Greater(t, Similarity(1), Similarity(2))
	assert.Greater(t, Similarity(100), 0.0)
}

func TestIndexQueryReturnsSimilarity(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	require.NoError(t, index.Upsert(ctx, "cache", "exact", []float32{1, 0, 0}, map[string]string{"answer": "x"}, time.Hour))

	neighbors, err := index.Query(ctx, "cache", []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-6)
	assert.InDelta(t, 0.0, neighbors[0].Distance, 1e-6)
	assert.Equal(t, "x", neighbors[0].Payload["answer"])
}

func TestIndexCollectionsArePartitioned(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	require.NoError(t, index.Upsert(ctx, "cache", "c1", []float32{1, 0, 0}, nil, 0))

	// Catalog queries never see cache entries.
	neighbors, err := index.Query(ctx, "catalog", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestIndexResolveNotFound(t *testing.T) {
	ctx := context.Background()
	index, _ := newTestIndex()

	_, err := index.Resolve(ctx, "catalog", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
