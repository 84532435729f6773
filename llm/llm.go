// Package llm defines the costed model collaborators: text embedding and
// chat completion. Both are external paid services; every call is a single
// bounded network operation and failures surface as the package's sentinel
// errors so callers can apply their documented degraded behavior.
package llm

import "context"

// Embedder converts text into a fixed-length vector for distance
// comparison. Implementations must return vectors of a constant
// dimensionality, exposed through Dimensions.
type Embedder interface {
	// Embed returns the embedding for the given text. Transient failures
	// are wrapped in ErrEmbeddingUnavailable.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of vectors produced by Embed.
	Dimensions() int
}

// CompletionRequest describes a single completion call.
type CompletionRequest struct {
	// Task is the partition tag for semantic caching (e.g. "skill_extract").
	Task string

	Model        string
	SystemPrompt string
	Prompt       string
	MaxTokens    *int
}

// CompletionResponse carries the completion text and the actual token
// counts reported by the provider, never estimates.
type CompletionResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int

	// Cached is true when the response was served from the semantic cache
	// and no costed call occurred.
	Cached bool

	// Similarity is the cache match score when Cached is true.
	Similarity float64
}

// Completer executes a costed completion call against the paid backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
