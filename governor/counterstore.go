// Package governor enforces hard daily spending and request budgets before
// any call reaches the paid completion backend, and accounts for actual
// cost afterward. It keeps per-scope daily aggregates in an external
// counter store and relies on the store's atomic increments, not on
// in-process coordination.
package governor

import (
	"context"
	"errors"
	"time"
)

// ErrCounterStoreUnavailable indicates the counter store could not be
// reached. Authorize fails open on it; Record swallows it.
var ErrCounterStoreUnavailable = errors.New("counter store unavailable")

// Counter field names within a day's key.
const (
	fieldRequests = "requests"
	fieldTokens   = "tokens"
	fieldCost     = "cost"
)

// CounterStore is the external counter primitive: atomic increments on
// named fields of a key, key expiry, and bulk field reads. Implementations
// must make each increment atomic; increments are additive and commutative
// so cross-request ordering never matters.
type CounterStore interface {
	// IncrBy atomically adds delta to an integer field, creating the key
	// and field on first use.
	IncrBy(ctx context.Context, key, field string, delta int64) error

	// IncrByFloat atomically adds delta to a float field.
	IncrByFloat(ctx context.Context, key, field string, delta float64) error

	// Expire sets or refreshes the retention window for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Fields returns all fields of a key as strings. A missing or expired
	// key yields an empty map, not an error.
	Fields(ctx context.Context, key string) (map[string]string, error)
}

// globalKey and clientKey shape the (scope, calendarDay) identity. Days are
// UTC; counters roll over at the UTC day boundary.
func globalKey(day string) string {
	return "usage:global:" + day
}

func clientKey(clientID, day string) string {
	return "usage:client:" + clientID + ":" + day
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// untilNextUTCDay is the retry-after hint attached to denials: budgets are
// re-evaluated, not reset, at the next UTC midnight.
func untilNextUTCDay(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return next.Sub(now)
}
