package middleware

import (
	"context"

	"github.com/flanksource/aicore/llm"
	"github.com/flanksource/aicore/semcache"
)

// cachingCompleter wraps a Completer with the semantic cache.
type cachingCompleter struct {
	next  llm.Completer
	cache *semcache.Cache
}

// Complete serves the request from a semantically equivalent prior answer
// when one exists; otherwise it runs the costed call and caches the result.
// Cache degradation (embedding or index failure) falls through to the
// costed path without surfacing an error here.
func (c *cachingCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if shouldBypassCache(ctx) {
		return c.next.Complete(ctx, req)
	}

	if hit, ok := c.cache.Lookup(ctx, req.Task, req.Prompt); ok {
		return llm.CompletionResponse{
			Text:       hit.Answer,
			Cached:     true,
			Similarity: hit.Similarity,
		}, nil
	}

	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		return resp, err
	}

	// Best-effort write; Store never fails the request. Two concurrent
	// misses for the same exact prompt both land here and the second write
	// overwrites the first under the deterministic key.
	c.cache.Store(ctx, req.Task, req.Prompt, resp.Text)

	return resp, nil
}

// WithSemanticCache returns a middleware option that answers requests from
// the semantic cache when a prior computation is similar enough.
func WithSemanticCache(cache *semcache.Cache) Option {
	return func(next llm.Completer) llm.Completer {
		return &cachingCompleter{next: next, cache: cache}
	}
}
