// Package cache provides response caches keyed by request fingerprint.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/pkg/metrics"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// entry is a node in the insertion-ordered list. head is the newest entry.
type entry struct {
	key     string
	resp    model.Response
	expires time.Time
	prev    *entry
	next    *entry
}

func (e *entry) reset() {
	*e = entry{}
}

// Memory is an in-process cache with per-entry TTL and oldest-first eviction.
type Memory struct {
	mu         sync.Mutex
	items      map[string]*entry
	head       *entry
	tail       *entry
	maxEntries int
	now        func() time.Time
	size       atomic.Int64
	pool       sync.Pool
}

// NewMemory creates a cache holding at most 10000 responses by default.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		items:      make(map[string]*entry),
		maxEntries: 10000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pool = sync.Pool{New: func() interface{} { return &entry{} }}
	return m
}

// Get returns a deep copy of the cached response. Expired entries are dropped.
func (m *Memory) Get(ctx context.Context, key string) (*model.Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.remove(e)
		ok = false
	}
	metrics.RecordCacheLookup(BackendMemory, ok)
	if !ok {
		return nil, false
	}
	return e.resp.Clone(), true
}

// Set stores a deep copy of resp. A ttl <= 0 never expires.
func (m *Memory) Set(ctx context.Context, key string, resp *model.Response, ttl time.Duration) {
	if resp == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		m.remove(old)
	}
	if m.maxEntries > 0 {
		for len(m.items) >= m.maxEntries && m.tail != nil {
			m.remove(m.tail)
		}
	}

	e := m.pool.Get().(*entry)
	e.key = key
	e.resp = *resp.Clone()
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	e.next = m.head
	if m.head != nil {
		m.head.prev = e
	}
	m.head = e
	if m.tail == nil {
		m.tail = e
	}
	m.items[key] = e
	m.size.Add(1)
}

// Purge drops every expired entry and returns how many were removed.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for e := m.tail; e != nil; {
		prev := e.prev
		if !e.expires.IsZero() && !now.Before(e.expires) {
			m.remove(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Size returns the number of entries, expired or not.
func (m *Memory) Size() int64 {
	return m.size.Load()
}

// Close implements io.Closer.
func (m *Memory) Close() error { return nil }

// remove unlinks e. Must be called with m.mu held.
func (m *Memory) remove(e *entry) {
	delete(m.items, e.key)
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		m.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		m.tail = e.prev
	}
	e.reset()
	m.pool.Put(e)
	m.size.Add(-1)
}
