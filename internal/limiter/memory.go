package limiter

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps fixed-window counters in process memory.
// The number of tracked keys is bounded; the least recently used counter
// is evicted when the bound is exceeded. Used by the Community tier.
type MemoryStore struct {
	mu      sync.Mutex
	maxKeys int
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

type counterEntry struct {
	key       string
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates a memory store tracking at most maxKeys counters.
func NewMemoryStore(maxKeys int) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &MemoryStore{
		maxKeys: maxKeys,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// IncrementCounter atomically increments a counter.
func (s *MemoryStore) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}

	fullKey := tenantID + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if elem, ok := s.items[fullKey]; ok {
		entry := elem.Value.(*counterEntry)
		s.order.MoveToFront(elem)

		if now.After(entry.expiresAt) {
			// Start new counter window
			entry.count = 1
			entry.expiresAt = now.Add(window)
			return 1, nil
		}

		entry.count++
		return entry.count, nil
	}

	entry := &counterEntry{
		key:       fullKey,
		count:     1,
		expiresAt: now.Add(window),
	}
	s.items[fullKey] = s.order.PushFront(entry)

	for s.order.Len() > s.maxKeys {
		s.removeOldest()
	}

	return 1, nil
}

// Ping checks store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close drops all counters.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order = list.New()
	return nil
}

// Stats returns the number of tracked counters and the bound.
func (s *MemoryStore) Stats() (size int, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), s.maxKeys
}

func (s *MemoryStore) removeOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*counterEntry).key)
}
