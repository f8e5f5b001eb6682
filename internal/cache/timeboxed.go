// Package cache provides the process-wide time-boxed cache used to avoid
// redundant calls to slow external collaborators.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// DefaultTTL is how long an entry stays fresh when no TTL is configured.
const DefaultTTL = 24 * time.Hour

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

type settings struct {
	now     func() time.Time
	backing domain.EntryStore
	logger  *slog.Logger
}

// Option configures a TimeBoxed cache.
type Option func(*settings)

// WithClock overrides the wall clock. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithBacking persists entries to store so they survive a restart. Memory
// misses fall through to the store and Put writes through.
func WithBacking(store domain.EntryStore) Option {
	return func(s *settings) { s.backing = store }
}

// WithLogger sets the logger used to report backing-store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// TimeBoxed is a key/value cache whose entries expire ttl after they were
// written. An entry older than ttl is treated as absent but is not removed;
// the next Put for the key overwrites it.
type TimeBoxed[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	s       settings
}

// New creates a TimeBoxed cache. A non-positive ttl selects DefaultTTL.
func New[V any](ttl time.Duration, opts ...Option) *TimeBoxed[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := settings{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return &TimeBoxed[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		s:       s,
	}
}

// TTL returns the freshness window.
func (c *TimeBoxed[V]) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key if it is still fresh.
func (c *TimeBoxed[V]) Get(ctx context.Context, key string) (V, bool) {
	now := c.s.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.fresh(e.fetchedAt, now) {
		return e.value, true
	}

	var zero V
	if c.s.backing == nil {
		return zero, false
	}

	stored, err := c.s.backing.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.s.logger.Warn("cache: backing load failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return zero, false
	}
	if !c.fresh(stored.FetchedAt, now) {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(stored.Payload, &v); err != nil {
		c.s.logger.Warn("cache: backing payload undecodable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, false
	}

	c.mu.Lock()
	if cur, ok := c.entries[key]; !ok || cur.fetchedAt.Before(stored.FetchedAt) {
		c.entries[key] = entry[V]{value: v, fetchedAt: stored.FetchedAt}
	}
	c.mu.Unlock()

	return v, true
}

// Put stores value under key, replacing any previous entry and resetting its
// timestamp.
func (c *TimeBoxed[V]) Put(ctx context.Context, key string, value V) {
	now := c.s.now()

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, fetchedAt: now}
	c.mu.Unlock()

	if c.s.backing == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.s.logger.Warn("cache: encode for backing failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.s.backing.Save(ctx, domain.CacheEntry{Key: key, Payload: payload, FetchedAt: now}); err != nil {
		c.s.logger.Warn("cache: backing save failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (c *TimeBoxed[V]) fresh(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) < c.ttl
}
