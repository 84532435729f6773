package llm

import "errors"

var (
	// ErrEmbeddingUnavailable is returned when the embedding service cannot
	// be reached or fails transiently. Callers degrade per their contract
	// (the semantic cache treats it as a miss).
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable is returned when the completion backend
	// cannot be reached or fails transiently.
	ErrCompletionUnavailable = errors.New("completion backend unavailable")

	// ErrMissingAPIKey is returned when no API key is configured or found
	// in the environment.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingPrompt is returned when Complete is called without a prompt.
	ErrMissingPrompt = errors.New("prompt is required")

	// ErrEmptyResponse is returned when the provider returns no choices.
	ErrEmptyResponse = errors.New("empty response from provider")
)
