package vector

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDimensionMismatch indicates a vector whose length does not match
	// the collection's declared dimensionality. This is a programmer or
	// configuration error; vectors are never silently truncated or padded.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnknownCollection indicates a collection that was not declared
	// when the index was constructed.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrIndexUnavailable indicates the backing store could not be reached.
	// The index does not retry; the caller decides.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
)

// Collection declares a named partition of the index and the fixed
// dimensionality of every vector stored in it.
type Collection struct {
	Name       string
	Dimensions int
}

// Neighbor is a single result of a similarity query.
type Neighbor struct {
	Key        string
	Distance   float64
	Similarity float64
	Payload    map[string]string
}

// Index partitions a Store into declared collections and converts raw
// distances into bounded similarity scores. Collections are never queried
// against each other.
type Index struct {
	store       Store
	collections map[string]int
}

// NewIndex creates an index over the given store. Every collection that
// will be read or written must be declared up front with its dimensionality.
func NewIndex(store Store, collections ...Collection) *Index {
	dims := make(map[string]int, len(collections))
	for _, c := range collections {
		dims[c.Name] = c.Dimensions
	}
	return &Index{store: store, collections: dims}
}

// Similarity converts a raw distance into a score in (0, 1], monotonically
// decreasing in distance. The transform is a fixed convention shared by the
// cache and the recommender; the acceptance threshold is calibrated against
// it, so it must not be swapped for cosine similarity in isolation.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// Upsert validates the vector against the collection's dimensionality and
// writes it with an optional TTL. A ttl of zero stores the document without
// expiry.
func (ix *Index) Upsert(ctx context.Context, collection, key string, vec []float32, payload map[string]string, ttl time.Duration) error {
	if err := ix.validate(collection, vec); err != nil {
		return err
	}

	doc := Document{Key: key, Embedding: vec, Payload: payload}
	if ttl != 0 {
		expires := time.Now().Add(ttl)
		doc.ExpiresAt = &expires
	}

	if err := ix.store.Upsert(ctx, collection, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Query returns up to k neighbors ordered by ascending distance (descending
// similarity). Fewer than k neighbors is a valid outcome. Results carry the
// store's ordering for equal distances.
func (ix *Index) Query(ctx context.Context, collection string, vec []float32, k int, filter Filter) ([]Neighbor, error) {
	if err := ix.validate(collection, vec); err != nil {
		return nil, err
	}

	matches, err := ix.store.Search(ctx, collection, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	neighbors := make([]Neighbor, 0, len(matches))
	for _, m := range matches {
		neighbors = append(neighbors, Neighbor{
			Key:        m.Key,
			Distance:   m.Distance,
			Similarity: Similarity(m.Distance),
			Payload:    m.Payload,
		})
	}
	return neighbors, nil
}

// Remove deletes a single entry. Removing an absent key is not an error.
func (ix *Index) Remove(ctx context.Context, collection, key string) error {
	if _, ok := ix.collections[collection]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if err := ix.store.Delete(ctx, collection, key); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

// Resolve returns a single document by key, or ErrNotFound.
func (ix *Index) Resolve(ctx context.Context, collection, key string) (*Document, error) {
	if _, ok := ix.collections[collection]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	doc, err := ix.store.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return doc, nil
}

// Hydrate fetches full documents for a set of keys in one call to the
// backing store. Missing keys are omitted, not errors.
func (ix *Index) Hydrate(ctx context.Context, collection string, keys []string) (map[string]*Document, error) {
	if _, ok := ix.collections[collection]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	docs, err := ix.store.BulkGet(ctx, collection, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return docs, nil
}

func (ix *Index) validate(collection string, vec []float32) error {
	dims, ok := ix.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if len(vec) != dims {
		return fmt.Errorf("%w: collection %s expects %d dimensions, got %d", ErrDimensionMismatch, collection, dims, len(vec))
	}
	return nil
}
