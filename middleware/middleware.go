// Package middleware composes the costed completion path: budget
// authorization before the call, semantic caching around it, usage
// recording and logging after it. Each middleware wraps a Completer and is
// applied with Wrap.
package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/flanksource/aicore/llm"
)

// Option is a functional option for configuring middleware.
type Option func(llm.Completer) llm.Completer

// Wrap wraps a completer with the specified middleware options. Options are
// applied in order, so the last option becomes the outermost layer.
//
// Example:
//
//	completer := middleware.Wrap(base,
//	    middleware.WithSemanticCache(cache),
//	    middleware.WithGovernor(gov),
//	    middleware.WithLogging(),
//	)
func Wrap(completer llm.Completer, options ...Option) llm.Completer {
	for _, option := range options {
		completer = option(completer)
	}
	return completer
}

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	noCacheKey       contextKey = "aicore:nocache"
	clientIDKey      contextKey = "aicore:client_id"
	correlationIDKey contextKey = "aicore:correlation_id"
)

// WithNoCache returns a context that bypasses the semantic cache.
func WithNoCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCacheKey, true)
}

func shouldBypassCache(ctx context.Context) bool {
	noCache, _ := ctx.Value(noCacheKey).(bool)
	return noCache
}

// WithClientID returns a context carrying the client identifier used for
// per-client budget accounting. Requests without one count only against the
// global scope.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

// ClientIDFrom retrieves the client identifier from the context.
func ClientIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// WithCorrelationID returns a context with a correlation ID for request
// tracing. A new ID is generated when none is given.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFrom retrieves the correlation ID from the context.
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
