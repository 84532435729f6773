package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/aicore/governor"
	"github.com/flanksource/aicore/llm"
	"github.com/flanksource/aicore/semcache"
	"github.com/flanksource/aicore/vector"
)

// mockCompleter is a mock costed backend for testing.
type mockCompleter struct {
	callCount int
	response  llm.CompletionResponse
	err       error
}

func (m *mockCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.callCount++
	if m.err != nil {
		return llm.CompletionResponse{}, m.err
	}
	resp := m.response
	if resp.Model == "" {
		resp.Model = "gpt-3.5-turbo"
	}
	if resp.Text == "" {
		resp.Text = "mock answer"
	}
	return resp, nil
}

// hashEmbedder produces a crude deterministic vector per text so distinct
// prompts land far apart and identical prompts land exactly together.
type hashEmbedder struct{}

func (hashEmbedder) Dimensions() int { return 4 }

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func newTestStack(t *testing.T, limits governor.Limits) (*mockCompleter, llm.Completer, *governor.Governor) {
	t.Helper()

	store := vector.NewMemoryStore()
	index := vector.NewIndex(store, vector.Collection{Name: "cache", Dimensions: 4})
	cache := semcache.New(index, hashEmbedder{}, semcache.Config{})

	gov := governor.New(governor.NewMemoryCounterStore(), governor.Config{
		Limits: limits,
		Now:    func() time.Time { return time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC) },
	})

	mock := &mockCompleter{}
	completer := Wrap(mock,
		WithSemanticCache(cache),
		WithGovernor(gov),
		WithLogging(),
	)
	return mock, completer, gov
}

func TestChainMissThenHit(t *testing.T) {
	ctx := context.Background()
	mock, completer, gov := newTestStack(t, governor.Limits{})

	req := llm.CompletionRequest{Task: "skill_extract", Prompt: "Experienced Python developer"}

	// First call misses the cache and reaches the backend.
	resp, err := completer.Complete(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, mock.callCount)

	// Second identical call is served from the cache.
	resp, err = completer.Complete(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, "mock answer", resp.Text)
	assert.InDelta(t, 1.0, resp.Similarity, 1e-6)
	assert.Equal(t, 1, mock.callCount)

	// Only the costed call was recorded.
	stats, err := gov.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[0].Requests)
}

func TestChainDenialBlocksEverything(t *testing.T) {
	ctx := WithClientID(context.Background(), "client-1")
	mock, completer, _ := newTestStack(t, governor.Limits{ClientDailyRequests: 1})

	req := llm.CompletionRequest{Task: "t", Prompt: "first prompt"}
	_, err := completer.Complete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.callCount)

	// Over budget: denied before the cache is even consulted.
	_, err = completer.Complete(ctx, llm.CompletionRequest{Task: "t", Prompt: "second prompt"})
	require.Error(t, err)

	var budgetErr *governor.BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, governor.ReasonClientRequests, budgetErr.Reason)
	assert.Equal(t, 1, mock.callCount)
}

func TestChainBackendErrorIsNotCachedOrRecorded(t *testing.T) {
	ctx := context.Background()
	mock, completer, gov := newTestStack(t, governor.Limits{})
	mock.err = assert.AnError

	req := llm.CompletionRequest{Task: "t", Prompt: "p"}
	_, err := completer.Complete(ctx, req)
	require.Error(t, err)

	stats, serr := gov.Stats(ctx, 1)
	require.NoError(t, serr)
	assert.Zero(t, stats[0].Requests)

	// A later successful call still reaches the backend: nothing was cached.
	mock.err = nil
	resp, err := completer.Complete(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, mock.callCount)
}

func TestNoCacheBypass(t *testing.T) {
	mock, completer, _ := newTestStack(t, governor.Limits{})

	req := llm.CompletionRequest{Task: "t", Prompt: "p"}
	_, err := completer.Complete(context.Background(), req)
	require.NoError(t, err)

	// Bypass skips both the lookup and the write-back short-circuit.
	resp, err := completer.Complete(WithNoCache(context.Background()), req)
	require.NoError(t, err)
	assert.False(t, resp.Cached)
	assert.Equal(t, 2, mock.callCount)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ClientIDFrom(ctx))
	assert.Empty(t, CorrelationIDFrom(ctx))

	ctx = WithClientID(ctx, "c1")
	assert.Equal(t, "c1", ClientIDFrom(ctx))

	ctx = WithCorrelationID(ctx, "")
	assert.NotEmpty(t, CorrelationIDFrom(ctx), "empty correlation ID gets generated")

	ctx = WithCorrelationID(ctx, "fixed")
	assert.Equal(t, "fixed", CorrelationIDFrom(ctx))
}
