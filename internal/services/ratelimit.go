package services

import (
	"sync"
	"time"
)

// CounterStore is a key-value counter with TTL, injected into the login path
// instead of living as ambient process state so a distributed cache can
// replace it in a multi-instance deployment.
type CounterStore interface {
	// Incr bumps the counter for key and returns the new count. The first
	// increment arms a TTL after which the counter resets to zero.
	Incr(key string, ttl time.Duration) (int, error)
}

type counterEntry struct {
	count   int
	resetAt time.Time
}

// MemoryCounterStore is the single-process CounterStore implementation.
// Expired entries are dropped on the next increment for their key.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]counterEntry
	now     func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]counterEntry),
		now:     time.Now,
	}
}

func (s *MemoryCounterStore) Incr(key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = counterEntry{count: 0, resetAt: now.Add(ttl)}
	}
	entry.count++
	s.entries[key] = entry
	return entry.count, nil
}
