package governor

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"
)

// MemoryCounterStore is an in-process CounterStore for tests and local
// development. Expiry is lazy: expired keys read as empty and are dropped
// on the next write.
type MemoryCounterStore struct {
	mu      sync.Mutex
	keys    map[string]map[string]float64
	expires map[string]time.Time

	// Now overrides the clock for expiry checks. Nil means time.Now.
	Now func() time.Time
}

// NewMemoryCounterStore creates an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		keys:    make(map[string]map[string]float64),
		expires: make(map[string]time.Time),
	}
}

func (s *MemoryCounterStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// dropExpired must be called with the lock held.
func (s *MemoryCounterStore) dropExpired(key string) {
	if expiry, ok := s.expires[key]; ok && s.now().After(expiry) {
		delete(s.keys, key)
		delete(s.expires, key)
	}
}

func (s *MemoryCounterStore) add(key, field string, delta float64) {
	s.dropExpired(key)
	fields, ok := s.keys[key]
	if !ok {
		fields = make(map[string]float64)
		s.keys[key] = fields
	}
	fields[field] += delta
}

func (s *MemoryCounterStore) IncrBy(_ context.Context, key, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(key, field, float64(delta))
	return nil
}

func (s *MemoryCounterStore) IncrByFloat(_ context.Context, key, field string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(key, field, delta)
	return nil
}

func (s *MemoryCounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryCounterStore) Fields(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropExpired(key)
	result := make(map[string]string)
	for field, value := range s.keys[key] {
		if value == math.Trunc(value) {
			result[field] = strconv.FormatInt(int64(value), 10)
		} else {
			result[field] = strconv.FormatFloat(value, 'f', -1, 64)
		}
	}
	return result, nil
}
