package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
)

// LangchainEmbedder adapts a langchaingo embedder to the Embedder interface.
// Useful for backends langchaingo already speaks (Ollama, HuggingFace, local
// models) without adding a provider implementation here.
type LangchainEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewLangchainEmbedder wraps an existing langchaingo embedder. The caller
// declares the model's dimensionality; it is validated on every write by the
// similarity index.
func NewLangchainEmbedder(embedder embeddings.Embedder, dimensions int) *LangchainEmbedder {
	return &LangchainEmbedder{embedder: embedder, dimensions: dimensions}
}

func (e *LangchainEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}
