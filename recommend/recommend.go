// Package recommend finds the k most similar catalog items to a seed item
// using the same similarity primitive as the semantic cache, against a
// separate catalog collection.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"

	"github.com/flanksource/aicore/vector"
)

// DefaultCollection is the index partition holding one vector per catalog
// item. It is distinct from the semantic cache's collection.
const DefaultCollection = "catalog"

// Config holds recommender tuning. Zero values fall back to defaults.
type Config struct {
	Collection string

	// Timeout bounds each external call made by Similar.
	Timeout time.Duration
}

// Item is a recommended catalog item with its hydrated record fields.
type Item struct {
	ID         string
	Similarity float64
	Fields     map[string]string
}

// Recommender answers "what are the k most similar catalog items to this
// one?". Stateless; safe for concurrent use.
type Recommender struct {
	index  *vector.Index
	config Config
}

// New creates a recommender over the given index.
func New(index *vector.Index, config Config) *Recommender {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Recommender{index: index, config: config}
}

// Similar returns up to k items most similar to the seed, never including
// the seed itself. A seed that does not exist or has no embedding yields an
// empty list, not an error: "no recommendations yet" is a valid state,
// distinct from a failed lookup.
func (r *Recommender) Similar(ctx context.Context, seedID string, k int) ([]Item, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	seed, err := r.index.Resolve(ctx, r.config.Collection, seedID)
	if err != nil {
		if errors.Is(err, vector.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve seed %s: %w", seedID, err)
	}
	if len(seed.Embedding) == 0 {
		return nil, nil
	}

	// One extra neighbor of headroom: the seed is usually its own nearest
	// match and gets filtered out below.
	neighbors, err := r.index.Query(ctx, r.config.Collection, seed.Embedding, k+1, nil)
	if err != nil {
		return nil, fmt.Errorf("query neighbors of %s: %w", seedID, err)
	}

	neighbors = lo.Filter(neighbors, func(n vector.Neighbor, _ int) bool {
		return n.Key != seedID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	keys := lo.Map(neighbors, func(n vector.Neighbor, _ int) string { return n.Key })
	docs, err := r.index.Hydrate(ctx, r.config.Collection, keys)
	if err != nil {
		return nil, fmt.Errorf("hydrate neighbors of %s: %w", seedID, err)
	}

	items := make([]Item, 0, len(neighbors))
	for _, n := range neighbors {
		doc, ok := docs[n.Key]
		if !ok {
			// Deleted between search and hydration; drop it rather than
			// failing the whole request.
			logger.Debugf("dropping neighbor %s of %s: no longer hydratable", n.Key, seedID)
			continue
		}
		items = append(items, Item{
			ID:         n.Key,
			Similarity: n.Similarity,
			Fields:     doc.Payload,
		})
	}
	return items, nil
}
