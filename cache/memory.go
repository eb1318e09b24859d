package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bookvision/bookvision/core"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryEntries bounds the in-process cache size.
const DefaultMemoryEntries = 512

type memoryEntry struct {
	results  []*core.SearchResult
	deadline time.Time
}

// MemoryStore implements Store with an in-process expiring LRU. It serves
// as the fallback tier when Redis is absent or unreachable.
type MemoryStore struct {
	lru    *expirable.LRU[string, memoryEntry]
	ttl    time.Duration
	mu     sync.Mutex
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process store. maxEntries <= 0 uses
// DefaultMemoryEntries. ttl is the store-wide upper bound on entry
// lifetime; Put may shorten it per entry but never extend it.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](maxEntries, nil, ttl),
		ttl: ttl,
	}
}

// Get returns the cached results for the key. An entry past its own
// deadline is a miss even if the LRU has not evicted it yet.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]*core.SearchResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrStoreClosed
	}
	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.deadline) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return entry.results, true, nil
}

// Put stores results under the key. The effective lifetime is the lesser
// of ttl and the store-wide TTL; a non-positive ttl uses the store-wide
// one.
func (s *MemoryStore) Put(ctx context.Context, key string, results []*core.SearchResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	s.lru.Add(key, memoryEntry{results: results, deadline: time.Now().Add(ttl)})
	return nil
}

// Close empties the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.lru.Purge()
	}
	return nil
}
