package governor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flanksource/commons/logger"
)

// Deny reasons, machine-readable.
const (
	ReasonGlobalCost     = "global_daily_cost_exceeded"
	ReasonGlobalRequests = "global_daily_requests_exceeded"
	ReasonClientRequests = "client_daily_requests_exceeded"
)

// Limits are the configured caps. A zero cap disables that check. A cap of
// N requests means the N-th request of the day is allowed and the (N+1)-th
// is denied.
type Limits struct {
	GlobalDailyCost     float64 // currency units
	GlobalDailyRequests int64
	ClientDailyRequests int64
}

// Config holds governor tuning. Zero values fall back to defaults.
type Config struct {
	Limits Limits

	// Rates overrides or extends the built-in per-model rate table.
	Rates       map[string]Rate
	DefaultRate Rate

	// Retention windows for counter keys. Global aggregates are kept longer
	// than per-client ones.
	GlobalRetention time.Duration // default 7 days
	ClientRetention time.Duration // default 2 days

	// Timeout bounds each counter store call.
	Timeout time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	// Reason is set on denial, one of the Reason* constants.
	Reason string
	// RetryAfter hints when the budget is next re-evaluated (next UTC day).
	RetryAfter time.Duration
}

// BudgetError is the user-facing denial. It carries the machine-readable
// reason and a retry-after hint for the HTTP layer to surface.
type BudgetError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("budget exceeded: %s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Second))
}

// DayStats is one day's global aggregate.
type DayStats struct {
	Day      string
	Requests int64
	Tokens   int64
	Cost     float64
}

// Governor authorizes costed operations against daily budgets and accounts
// for actual usage afterward. Per (scope, day) a counter moves from unseen
// through tracking into over-limit; over-limit is sticky for the rest of
// the UTC day because counters only grow.
type Governor struct {
	store  CounterStore
	config Config
}

// New creates a governor over the given counter store.
func New(store CounterStore, config Config) *Governor {
	if config.GlobalRetention == 0 {
		config.GlobalRetention = 7 * 24 * time.Hour
	}
	if config.ClientRetention == 0 {
		config.ClientRetention = 2 * 24 * time.Hour
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.DefaultRate == (Rate{}) {
		config.DefaultRate = DefaultRate
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Governor{store: store, config: config}
}

// Authorize decides whether a costed operation may proceed for the given
// client. The three caps are checked independently; the first failing check
// is reported. If the counter store is unreachable the governor fails open:
// budget enforcement must never become an availability outage.
//
// Authorize must run strictly before the costed operation is attempted.
func (g *Governor) Authorize(ctx context.Context, clientID string) Decision {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	now := g.config.Now()
	day := dayOf(now)
	retryAfter := untilNextUTCDay(now)

	global, err := g.store.Fields(ctx, globalKey(day))
	if err != nil {
		logger.Warnf("counter store unreachable, authorizing without budget check: %v", err)
		authorizations.WithLabelValues("fail_open").Inc()
		return Decision{Allowed: true}
	}

	if limit := g.config.Limits.GlobalDailyCost; limit > 0 && parseFloat(global[fieldCost]) >= limit {
		authorizations.WithLabelValues(ReasonGlobalCost).Inc()
		return Decision{Reason: ReasonGlobalCost, RetryAfter: retryAfter}
	}
	if limit := g.config.Limits.GlobalDailyRequests; limit > 0 && parseInt(global[fieldRequests]) >= limit {
		authorizations.WithLabelValues(ReasonGlobalRequests).Inc()
		return Decision{Reason: ReasonGlobalRequests, RetryAfter: retryAfter}
	}

	if limit := g.config.Limits.ClientDailyRequests; limit > 0 && clientID != "" {
		client, err := g.store.Fields(ctx, clientKey(clientID, day))
		if err != nil {
			logger.Warnf("counter store unreachable for client %s, authorizing: %v", clientID, err)
			authorizations.WithLabelValues("fail_open").Inc()
			return Decision{Allowed: true}
		}
		if parseInt(client[fieldRequests]) >= limit {
			authorizations.WithLabelValues(ReasonClientRequests).Inc()
			return Decision{Reason: ReasonClientRequests, RetryAfter: retryAfter}
		}
	}

	authorizations.WithLabelValues("allowed").Inc()
	return Decision{Allowed: true}
}

// Deny converts a denial into the user-facing BudgetError.
func (d Decision) Deny() error {
	if d.Allowed {
		return nil
	}
	return &BudgetError{Reason: d.Reason, RetryAfter: d.RetryAfter}
}

// Record accounts for a completed costed call using the actual token counts
// reported by the provider, never estimates. It increments the global and
// per-client counters for today and refreshes their retention expiry.
//
// Record is best-effort: failures are logged and discarded so usage
// accounting never fails the primary request. It must run strictly after
// the costed call. A request aborted between Authorize and Record is
// under-counted; that drift is accepted.
func (g *Governor) Record(ctx context.Context, clientID, model string, inputTokens, outputTokens int) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	cost := g.rateFor(model).Cost(inputTokens, outputTokens)
	tokens := int64(inputTokens + outputTokens)
	day := dayOf(g.config.Now())

	g.increment(ctx, globalKey(day), tokens, cost, g.config.GlobalRetention)
	if clientID != "" {
		g.increment(ctx, clientKey(clientID, day), tokens, cost, g.config.ClientRetention)
	}

	recordedCost.WithLabelValues(model).Add(cost)
	logger.Tracef("recorded usage model=%s client=%s tokens=%d cost=%.6f", model, clientID, tokens, cost)
}

func (g *Governor) increment(ctx context.Context, key string, tokens int64, cost float64, retention time.Duration) {
	if err := g.store.IncrBy(ctx, key, fieldRequests, 1); err != nil {
		logger.Warnf("usage counter increment dropped for %s: %v", key, err)
		return
	}
	if err := g.store.IncrBy(ctx, key, fieldTokens, tokens); err != nil {
		logger.Warnf("usage token increment dropped for %s: %v", key, err)
	}
	if err := g.store.IncrByFloat(ctx, key, fieldCost, cost); err != nil {
		logger.Warnf("usage cost increment dropped for %s: %v", key, err)
	}
	if err := g.store.Expire(ctx, key, retention); err != nil {
		logger.Warnf("usage counter expiry refresh dropped for %s: %v", key, err)
	}
}

// Stats returns the global per-day aggregates for the last n days, most
// recent first. Days with no recorded usage are included with zero values.
func (g *Governor) Stats(ctx context.Context, days int) ([]DayStats, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	now := g.config.Now().UTC()
	stats := make([]DayStats, 0, days)
	for i := 0; i < days; i++ {
		day := dayOf(now.AddDate(0, 0, -i))
		fields, err := g.store.Fields(ctx, globalKey(day))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCounterStoreUnavailable, err)
		}
		stats = append(stats, DayStats{
			Day:      day,
			Requests: parseInt(fields[fieldRequests]),
			Tokens:   parseInt(fields[fieldTokens]),
			Cost:     parseFloat(fields[fieldCost]),
		})
	}
	return stats, nil
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
