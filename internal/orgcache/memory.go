// ABOUTME: Thread-safe TTL cache mapping (token digest, collection) keys to organization ids.
// ABOUTME: Bounded by entry count; sweeps expired entries before inserting at capacity.

package orgcache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// cacheEntry stores the resolved organization and its expiry.
type cacheEntry struct {
	orgID     string
	expiresAt time.Time
	element   *list.Element
}

// Memory is a process-local resolution cache. Entries expire after a fixed
// TTL and the number of entries never exceeds maxEntries.
// Uses a doubly-linked list to keep insertion order for O(1) eviction.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      *list.List // keys in insertion order (oldest at front)
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an in-memory cache with the given TTL and entry bound.
// There is no background goroutine; expired entries are swept on demand.
func NewMemory(ttl time.Duration, maxEntries int, opts ...Option) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	m := &Memory{
		entries:    make(map[string]*cacheEntry),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the organization id for key if a live entry exists.
// An entry is live only while now is before its expiry.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		m.removeLocked(key, entry)
		return "", false, nil
	}
	return entry.orgID, true, nil
}

// Set stores orgID under key with a fresh TTL. When the cache is full,
// expired entries are swept first; if it is still full the oldest insertion
// is evicted.
func (m *Memory) Set(_ context.Context, key, orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	// Entries are replaced, never updated
	if old, exists := m.entries[key]; exists {
		m.removeLocked(key, old)
	}

	if len(m.entries) >= m.maxEntries {
		m.sweepLocked(now)
	}
	if len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}

	elem := m.order.PushBack(key)
	m.entries[key] = &cacheEntry{
		orgID:     orgID,
		expiresAt: now.Add(m.ttl),
		element:   elem,
	}
	return nil
}

// Sweep removes every expired entry and reports how many were removed.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now()), nil
}

// Len returns the number of entries currently held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close is a no-op; Memory owns no background resources.
func (m *Memory) Close() error {
	return nil
}

// sweepLocked must be called with mu held.
func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			m.removeLocked(key, entry)
			removed++
		}
	}
	return removed
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (m *Memory) evictOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	m.order.Remove(front)
	delete(m.entries, key)
}

func (m *Memory) removeLocked(key string, entry *cacheEntry) {
	m.order.Remove(entry.element)
	delete(m.entries, key)
}
