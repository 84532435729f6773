package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"

	"github.com/flanksource/aicore/llm"
)

// LogConfig holds configuration for logging middleware.
type LogConfig struct {
	TruncatePrompt   int // Truncate prompts longer than this (0 = no truncation)
	TruncateResponse int // Truncate responses longer than this (0 = no truncation)
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		TruncatePrompt:   500,
		TruncateResponse: 500,
	}
}

// loggingCompleter wraps a Completer with structured request logging.
type loggingCompleter struct {
	next   llm.Completer
	config LogConfig
}

func (l *loggingCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	startTime := time.Now()
	correlationID := CorrelationIDFrom(ctx)

	logger.Debugf("completion started task=%s model=%s prompt=%s",
		req.Task, req.Model, l.truncate(req.Prompt, l.config.TruncatePrompt))

	resp, err := l.next.Complete(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		attrs := []slog.Attr{
			slog.String("task", req.Task),
			slog.String("model", req.Model),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		}
		if correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}
		logger.StandardLogger().GetSlogLogger().LogAttrs(ctx, slog.LevelError, "completion failed", attrs...)
		return resp, err
	}

	attrs := []slog.Attr{
		slog.String("task", req.Task),
		slog.String("model", resp.Model),
		slog.Duration("duration", duration),
		slog.Bool("cached", resp.Cached),
	}
	if correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}
	if resp.Cached {
		attrs = append(attrs, slog.Float64("similarity", resp.Similarity))
	} else {
		attrs = append(attrs,
			slog.Int("input_tokens", resp.InputTokens),
			slog.Int("output_tokens", resp.OutputTokens),
		)
	}
	attrs = append(attrs, slog.String("response", l.truncate(resp.Text, l.config.TruncateResponse)))

	logger.StandardLogger().GetSlogLogger().LogAttrs(ctx, slog.LevelInfo, "completion finished", attrs...)
	return resp, nil
}

// truncate shortens a string for logging. A maxLen of 0 disables truncation.
func (l *loggingCompleter) truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return lo.Ellipsis(s, maxLen)
}

// WithLogging returns a middleware option that logs each completion with
// its duration, cache outcome, and token usage.
func WithLogging(config ...LogConfig) Option {
	cfg := DefaultLogConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return func(next llm.Completer) llm.Completer {
		return &loggingCompleter{next: next, config: cfg}
	}
}
