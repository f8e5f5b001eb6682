package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// EntryStore implements domain.EntryStore. Each key is stored as a JSON
// document {"timestamp": ..., "payload": ...} under cache:entry:{key}.
// Freshness is decided by the in-process cache; the Redis TTL only reclaims
// space once an entry can no longer be served.
type EntryStore struct {
	c   *Client
	ttl time.Duration
}

// NewEntryStore creates an EntryStore. Entries are expired by Redis after
// retain; zero keeps them until overwritten.
func NewEntryStore(c *Client, retain time.Duration) *EntryStore {
	return &EntryStore{c: c, ttl: retain}
}

func (s *EntryStore) entryKey(key string) string {
	return s.c.key("cache:entry:", key)
}

// Load returns the stored entry or domain.ErrNotFound.
func (s *EntryStore) Load(ctx context.Context, key string) (domain.CacheEntry, error) {
	raw, err := s.c.rdb.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CacheEntry{}, domain.ErrNotFound
		}
		return domain.CacheEntry{}, fmt.Errorf("redis: load entry %s: %w", key, err)
	}

	var e domain.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("redis: decode entry %s: %w", key, err)
	}
	e.Key = key
	return e, nil
}

// Save overwrites the entry for e.Key.
func (s *EntryStore) Save(ctx context.Context, e domain.CacheEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis: encode entry %s: %w", e.Key, err)
	}
	if err := s.c.rdb.Set(ctx, s.entryKey(e.Key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save entry %s: %w", e.Key, err)
	}
	return nil
}

var _ domain.EntryStore = (*EntryStore)(nil)
