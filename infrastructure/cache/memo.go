// Package cache memoizes external lookups (supplier search, evidence
// scoring) with a bounded LRU and a time-to-live.
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxSize = 256
	defaultTTL     = 24 * time.Hour
)

// Config configures a Memo.
type Config struct {
	// MaxSize is the maximum number of entries in the LRU.
	MaxSize int
	// TTL is how long a cached value remains valid.
	TTL time.Duration
}

// DefaultConfig returns the default cache size and TTL.
func DefaultConfig() Config {
	return Config{MaxSize: defaultMaxSize, TTL: defaultTTL}
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Memo caches the results of a keyed loader. Concurrent misses for the same
// key share one load. Errors are never cached.
type Memo[V any] struct {
	cache *lru.Cache[string, entry[V]]
	ttl   time.Duration
	sf    singleflight.Group
	now   func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemo creates a memo. Zero config values fall back to DefaultConfig.
func NewMemo[V any](cfg Config) *Memo[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	// lru.New only errors on non-positive size, which is guarded above.
	c, _ := lru.New[string, entry[V]](cfg.MaxSize)
	return &Memo[V]{cache: c, ttl: cfg.TTL, now: time.Now}
}

// Get returns the cached value for key or calls load and caches its result.
func (m *Memo[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if e, ok := m.cache.Get(key); ok {
		if m.now().Sub(e.storedAt) < m.ttl {
			m.hits.Add(1)
			return e.value, nil
		}
		m.cache.Remove(key)
	}
	m.misses.Add(1)

	v, err, _ := m.sf.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil {
			return val, err
		}
		m.cache.Add(key, entry[V]{value: val, storedAt: m.now()})
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Clear drops every entry.
func (m *Memo[V]) Clear() { m.cache.Purge() }

// Stats returns hit and miss counters and the current size.
func (m *Memo[V]) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Entries: m.cache.Len()}
}

// Key joins normalized parts into a cache key.
func Key(parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(norm, "\x1f")
}
