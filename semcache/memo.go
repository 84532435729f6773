package semcache

import (
	"context"
	"time"

	gocachelib "github.com/eko/gocache/lib/v4/cache"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/flanksource/aicore/llm"
)

const (
	memoTTL     = 5 * time.Minute
	memoCleanup = 10 * time.Minute
)

// memoEmbedder memoizes embeddings in-process for a few minutes. Lookup on a
// miss is immediately followed by Store for the same prompt; without the
// memo that path would pay for the same embedding twice.
type memoEmbedder struct {
	next llm.Embedder
	memo *gocachelib.Cache[[]float32]
}

func newMemoEmbedder(next llm.Embedder) *memoEmbedder {
	client := gocache.New(memoTTL, memoCleanup)
	return &memoEmbedder{
		next: next,
		memo: gocachelib.New[[]float32](gocachestore.NewGoCache(client)),
	}
}

func (m *memoEmbedder) Dimensions() int {
	return m.next.Dimensions()
}

func (m *memoEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, err := m.memo.Get(ctx, text); err == nil && len(vec) > 0 {
		return vec, nil
	}

	vec, err := m.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Failures are ignored: the memo is an optimization, not a store.
	_ = m.memo.Set(ctx, text, vec)
	return vec, nil
}
