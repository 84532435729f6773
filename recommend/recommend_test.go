package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/aicore/vector"
)

func newTestRecommender() (*Recommender, *vector.MemoryStore) {
	store := vector.NewMemoryStore()
	index := vector.NewIndex(store, vector.Collection{Name: "catalog", Dimensions: 2})
	return New(index, Config{}), store
}

func seedCatalog(t *testing.T, store *vector.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	items := []vector.Document{
		{Key: "backend-dev", Embedding: []float32{1, 0}, Payload: map[string]string{"title": "Backend Developer"}},
		{Key: "platform-eng", Embedding: []float32{0.9, 0.1}, Payload: map[string]string{"title": "Platform Engineer"}},
		{Key: "data-eng", Embedding: []float32{0.7, 0.3}, Payload: map[string]string{"title": "Data Engineer"}},
		{Key: "chef", Embedding: []float32{0, 1}, Payload: map[string]string{"title": "Chef"}},
	}
	for _, item := range items {
		require.NoError(t, store.Upsert(ctx, "catalog", item))
	}
}

func TestSimilarExcludesSeed(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	// The seed is its own nearest neighbor; it must still never appear.
	for k := 1; k <= 4; k++ {
		items, err := rec.Similar(ctx, "backend-dev", k)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(items), k)
		for _, item := range items {
			assert.NotEqual(t, "backend-dev", item.ID)
		}
	}
}

func TestSimilarOrdersByDescendingSimilarity(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	items, err := rec.Similar(ctx, "backend-dev", 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "platform-eng", items[0].ID)
	assert.Equal(t, "data-eng", items[1].ID)
	assert.Equal(t, "chef", items[2].ID)
	assert.Greater(t, items[0].Similarity, items[1].Similarity)
	assert.Greater(t, items[1].Similarity, items[2].Similarity)
}

func TestSimilarHydratesFullRecords(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	items, err := rec.Similar(ctx, "backend-dev", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Platform Engineer", items[0].Fields["title"])
}

func TestSimilarMissingSeedIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	items, err := rec.Similar(ctx, "no-such-item", 3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSimilarSeedWithoutEmbeddingIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	// Items land in the catalog before their embedding is computed; they
	// are retrieval-ineligible until then.
	require.NoError(t, store.Upsert(ctx, "catalog", vector.Document{
		Key: "new-posting", Payload: map[string]string{"title": "New Posting"},
	}))

	items, err := rec.Similar(ctx, "new-posting", 3)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// droppingStore simulates a neighbor deleted between the search and the
// hydration call.
type droppingStore struct {
	vector.Store
	drop string
}

func (d *droppingStore) BulkGet(ctx context.Context, collection string, keys []string) (map[string]*vector.Document, error) {
	docs, err := d.Store.BulkGet(ctx, collection, keys)
	delete(docs, d.drop)
	return docs, err
}

func TestSimilarDropsNeighborsThatFailHydration(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	seedCatalog(t, store)

	dropping := &droppingStore{Store: store, drop: "platform-eng"}
	index := vector.NewIndex(dropping, vector.Collection{Name: "catalog", Dimensions: 2})
	rec := New(index, Config{})

	items, err := rec.Similar(ctx, "backend-dev", 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "data-eng", items[0].ID)
}

func TestSimilarZeroK(t *testing.T) {
	ctx := context.Background()
	rec, store := newTestRecommender()
	seedCatalog(t, store)

	items, err := rec.Similar(ctx, "backend-dev", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
