// Package vector provides the vector store abstraction used by the semantic
// cache and the catalog recommender: a key-addressed document store with
// approximate nearest-neighbor search over named collections.
package vector

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNotFound indicates the document does not exist or has expired.
	ErrNotFound = errors.New("document not found")
)

// Document is a stored vector with its payload.
type Document struct {
	Key       string
	Embedding []float32
	Payload   map[string]string
	// ExpiresAt marks the document absent for reads past this time.
	// Expiry is lazy: the record may still physically exist in the store.
	ExpiresAt *time.Time
}

// Expired reports whether the document is past its expiry at the given time.
func (d *Document) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}

// Match is a single nearest-neighbor search result.
type Match struct {
	Key      string
	Distance float64
	Payload  map[string]string
}

// Filter restricts a search to documents whose payload fields equal the
// given values. Filtering happens server-side in the store; a result list
// shorter than k is a valid outcome, never an error.
type Filter map[string]string

// Store is the backing vector store. Each operation is a single bounded
// network call; retry policy belongs to the caller.
type Store interface {
	// Upsert writes a document, replacing any existing document with the
	// same key in the collection.
	Upsert(ctx context.Context, collection string, doc Document) error

	// Get returns a single document, or ErrNotFound if absent or expired.
	Get(ctx context.Context, collection, key string) (*Document, error)

	// BulkGet returns the documents for the given keys in one call.
	// Missing or expired keys are omitted from the result map.
	BulkGet(ctx context.Context, collection string, keys []string) (map[string]*Document, error)

	// Search returns up to k matches ordered by ascending distance.
	// Ties in distance preserve store-returned order; ordering across
	// equal distances is not deterministic between stores.
	Search(ctx context.Context, collection string, vec []float32, k int, filter Filter) ([]Match, error)

	// Delete removes a document. Deleting an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error
}
