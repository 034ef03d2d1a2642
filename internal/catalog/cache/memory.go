package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"libripal/internal/catalog/models"
)

const defaultMaxEntries = 1024

type memoryEntry struct {
	key      string
	items    []models.Item
	storedAt time.Time
}

// Memory is a bounded in-process cache with TTL expiry and LRU eviction.
// Expired entries are dropped lazily on read; the size bound keeps a
// long-running process from growing without limit.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithMaxEntries bounds the number of cached source calls.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) { m.maxEntries = n }
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) { m.clock = clock }
}

// NewMemory creates a bounded memory cache with the given TTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]models.Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if m.clock().Sub(entry.storedAt) >= m.ttl {
		m.order.Remove(elem)
		delete(m.entries, key)
		return nil, false
	}

	m.order.MoveToFront(elem)

	// Callers append to and reslice search results, so hand out a copy
	// rather than the cached backing array.
	items := make([]models.Item, len(entry.items))
	copy(items, entry.items)
	return items, true
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key string, items []models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.items = items
		entry.storedAt = m.clock()
		m.order.MoveToFront(elem)
		return nil
	}

	elem := m.order.PushFront(&memoryEntry{key: key, items: items, storedAt: m.clock()})
	m.entries[key] = elem

	if m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

// Len reports the current number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
