package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CacheEntry is one persisted cache record. Entries are overwritten on
// refresh, never partially updated.
type CacheEntry struct {
	Key       string          `json:"-"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"timestamp"`
}

// EntryStore persists cache entries outside the process so they survive a
// restart. Load returns ErrNotFound when the key has never been stored.
type EntryStore interface {
	Load(ctx context.Context, key string) (CacheEntry, error)
	Save(ctx context.Context, entry CacheEntry) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus fans out detected opportunities. Publish is fire-and-forget;
// the stream keeps a bounded, durable history that StreamRecent reads newest
// first.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRecent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// Bus channels and streams.
const (
	ChannelArbitrage = "ch:arbitrage"
	StreamArbitrage  = "stream:arbitrage"
	ChannelAnalysis  = "ch:analysis"
)
