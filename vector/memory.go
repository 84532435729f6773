package vector

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process brute-force Store used for tests and local
// development. Search is exact Euclidean distance over every live document;
// ties preserve insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection

	// Now overrides the clock for expiry checks. Nil means time.Now.
	Now func() time.Time
}

type memoryCollection struct {
	docs  map[string]Document
	order []string // insertion order, stable tie-break for equal distances
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		s.collections[collection] = c
	}
	if _, exists := c.docs[doc.Key]; !exists {
		c.order = append(c.order, doc.Key)
	}
	c.docs[doc.Key] = doc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := c.docs[key]
	if !ok || doc.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) BulkGet(_ context.Context, collection string, keys []string) (map[string]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*Document, len(keys))
	c, ok := s.collections[collection]
	if !ok {
		return result, nil
	}
	now := s.now()
	for _, key := range keys {
		if doc, ok := c.docs[key]; ok && !doc.Expired(now) {
			d := doc
			result[key] = &d
		}
	}
	return result, nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, vec []float32, k int, filter Filter) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok || k <= 0 {
		return nil, nil
	}

	now := s.now()
	var matches []Match
	for _, key := range c.order {
		doc, ok := c.docs[key]
		if !ok || doc.Expired(now) {
			continue
		}
		if !matchesFilter(doc.Payload, filter) {
			continue
		}
		matches = append(matches, Match{
			Key:      doc.Key,
			Distance: euclidean(vec, doc.Embedding),
			Payload:  doc.Payload,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		delete(c.docs, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func matchesFilter(payload map[string]string, filter Filter) bool {
	for field, want := range filter {
		if payload[field] != want {
			return false
		}
	}
	return true
}

func euclidean(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
