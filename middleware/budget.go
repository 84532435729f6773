package middleware

import (
	"context"

	"github.com/flanksource/aicore/governor"
	"github.com/flanksource/aicore/llm"
)

// governedCompleter wraps a Completer with budget authorization and usage
// accounting. It is the outermost layer in the usual chain: authorization
// runs before the cache is even consulted, and recording happens only when
// a real costed call completed.
type governedCompleter struct {
	next llm.Completer
	gov  *governor.Governor
}

func (g *governedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	clientID := ClientIDFrom(ctx)

	if decision := g.gov.Authorize(ctx, clientID); !decision.Allowed {
		return llm.CompletionResponse{}, decision.Deny()
	}

	resp, err := g.next.Complete(ctx, req)
	if err != nil {
		return resp, err
	}

	// Cache hits consumed no paid tokens; only actual costed calls are
	// recorded, with the provider-reported counts.
	if !resp.Cached {
		g.gov.Record(ctx, clientID, resp.Model, resp.InputTokens, resp.OutputTokens)
	}
	return resp, nil
}

// WithGovernor returns a middleware option that denies requests over budget
// and records actual usage after completed calls.
func WithGovernor(gov *governor.Governor) Option {
	return func(next llm.Completer) llm.Completer {
		return &governedCompleter{next: next, gov: gov}
	}
}
