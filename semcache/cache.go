// Package semcache implements a semantic cache for costed completion calls:
// instead of exact-key lookup, a prior answer is reused when its prompt
// embedding is close enough to the new prompt's embedding.
package semcache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"

	"github.com/flanksource/aicore/llm"
	"github.com/flanksource/aicore/vector"
)

const (
	// DefaultThreshold is the minimum similarity for treating a neighbor as
	// a hit. Calibrated against the 1/(1+d) transform, not cosine.
	DefaultThreshold = 0.90

	// DefaultTTL is how long cached answers stay live.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultCollection is the index partition holding cache entries.
	// Catalog vectors live in their own collection and are never queried
	// against cache entries.
	DefaultCollection = "cache"

	payloadTask   = "task"
	payloadAnswer = "answer"
)

// Config holds cache tuning. Zero values fall back to the defaults above.
type Config struct {
	Collection string
	Threshold  float64
	TTL        time.Duration

	// Timeout bounds each external call made by Lookup and Store.
	Timeout time.Duration
}

// Hit is a successful cache lookup.
type Hit struct {
	Answer     string
	Similarity float64
	Key        string
}

// Cache answers "has an equivalent request already been computed?" over a
// similarity index. It holds no state of its own; correctness under
// concurrent writers relies on the store's per-key atomicity.
type Cache struct {
	index    *vector.Index
	embedder llm.Embedder
	config   Config
}

// New creates a semantic cache over the given index and embedder. The
// embedder is wrapped with a short-lived in-process memoizer so the
// miss-then-store path does not pay for the same embedding twice.
func New(index *vector.Index, embedder llm.Embedder, config Config) *Cache {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Cache{
		index:    index,
		embedder: newMemoEmbedder(embedder),
		config:   config,
	}
}

// Lookup returns the cached answer for a semantically equivalent prior
// prompt, if one exists above the similarity threshold. Infrastructure
// failures (embedding or index) degrade to a miss so the caller proceeds to
// the costed path; they are logged and counted separately from genuine
// similarity misses and never raised to the caller.
func (c *Cache) Lookup(ctx context.Context, task, prompt string) (*Hit, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		logger.Warnf("[%s] semantic cache degraded to miss, embedding failed: %v", task, err)
		lookupMisses.WithLabelValues(task, missReasonEmbedding).Inc()
		return nil, false
	}

	neighbors, err := c.index.Query(ctx, c.config.Collection, vec, 1, vector.Filter{payloadTask: task})
	if err != nil {
		logger.Warnf("[%s] semantic cache degraded to miss, index query failed: %v", task, err)
		lookupMisses.WithLabelValues(task, missReasonIndex).Inc()
		return nil, false
	}

	if len(neighbors) == 0 || neighbors[0].Similarity < c.config.Threshold {
		lookupMisses.WithLabelValues(task, missReasonSimilarity).Inc()
		return nil, false
	}

	n := neighbors[0]
	logger.Tracef("[%s] semantic cache hit sim=%.4f for %s", task, n.Similarity, lo.Ellipsis(prompt, 40))
	lookupHits.WithLabelValues(task).Inc()
	return &Hit{
		Answer:     n.Payload[payloadAnswer],
		Similarity: n.Similarity,
		Key:        n.Key,
	}, true
}

// Store caches an answer computed for (task, prompt). The key is derived
// from the exact prompt text, not the embedding, so repeated identical
// prompts overwrite the same record (last writer wins) instead of
// accumulating duplicates. Semantically similar but textually distinct
// prompts each get their own entry; that duplication is accepted.
//
// Store is best-effort: it never returns an error and a failed cache write
// never fails the primary request.
func (c *Cache) Store(ctx context.Context, task, prompt, answer string) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	vec, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		logger.Warnf("[%s] skipping cache write, embedding failed: %v", task, err)
		storeFailures.WithLabelValues(task).Inc()
		return
	}

	key := entryKey(task, prompt)
	payload := map[string]string{payloadTask: task, payloadAnswer: answer}
	if err := c.index.Upsert(ctx, c.config.Collection, key, vec, payload, c.config.TTL); err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			// Configuration error, not a transient outage. Loud but still
			// swallowed here so the primary request survives.
			logger.Errorf("[%s] cache write rejected: %v", task, err)
		} else {
			logger.Warnf("[%s] cache write failed: %v", task, err)
		}
		storeFailures.WithLabelValues(task).Inc()
		return
	}

	logger.Tracef("[%s] cached answer for %s (key:%s)", task, lo.Ellipsis(prompt, 40), key[:12])
}

// Invalidate removes the entry for the exact (task, prompt) pair.
func (c *Cache) Invalidate(ctx context.Context, task, prompt string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.index.Remove(ctx, c.config.Collection, entryKey(task, prompt))
}

// entryKey derives the deterministic content key from the task and the
// exact prompt text.
func entryKey(task, prompt string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", task, prompt)))
	return fmt.Sprintf("%x", hash)
}
