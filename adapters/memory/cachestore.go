// Package memory provides in-process implementations of storage ports.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
)

type cacheEntry struct {
	sub       billing.Subscription
	expiresAt time.Time
}

// CacheStore is an in-memory implementation of ports.SubscriptionCache.
// Expiry is lazy: entries past their deadline read as absent and are
// evicted on the read that finds them expired; Put always overwrites.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   ports.Clock
}

// NewCacheStore creates a new in-memory subscription cache.
func NewCacheStore(clock ports.Clock) *CacheStore {
	return &CacheStore{
		entries: make(map[string]cacheEntry),
		clock:   clock,
	}
}

// Get returns the cached subscription if present and unexpired.
func (s *CacheStore) Get(ctx context.Context, customerRef string) (billing.Subscription, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[customerRef]
	s.mu.RUnlock()

	if !ok {
		return billing.Subscription{}, false, nil
	}

	if s.clock.Now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, ok := s.entries[customerRef]; ok && s.clock.Now().After(cur.expiresAt) {
			delete(s.entries, customerRef)
		}
		s.mu.Unlock()
		return billing.Subscription{}, false, nil
	}

	return entry.sub, true, nil
}

// Put stores the subscription, overwriting any stale entry.
func (s *CacheStore) Put(ctx context.Context, customerRef string, sub billing.Subscription, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[customerRef] = cacheEntry{
		sub:       sub,
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, expired or not (for testing).
func (s *CacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries (for testing).
func (s *CacheStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]cacheEntry)
}

// Ensure interface compliance.
var _ ports.SubscriptionCache = (*CacheStore)(nil)
