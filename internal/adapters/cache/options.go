package cache

import "time"

// Option configures a Memory cache.
type Option func(*Memory)

// WithMaxEntries bounds the cache. When full, the oldest entry is evicted.
// If n <= 0 the cache is unbounded.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}
