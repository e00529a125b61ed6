package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores retrieval results per (provider, query) with a TTL so repeated
// research of a hot topic skips the provider round-trip. A nil Cache is a
// no-op, so callers never need to branch on whether Redis is configured.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache wraps a Redis client. ttl <= 0 disables expiry-based reuse.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(provider, query string) string {
	return fmt.Sprintf("search:%s:%s", provider, query)
}

// Get returns cached documents for a query, if present.
func (c *Cache) Get(ctx context.Context, provider, query string) ([]Document, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey(provider, query)).Bytes()
	if err != nil {
		return nil, false
	}
	var docs []Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, false
	}
	return docs, true
}

// Set stores documents for a query. Errors are swallowed; the cache is an
// optimization, never a dependency.
func (c *Cache) Set(ctx context.Context, provider, query string, docs []Document) {
	if c == nil || c.rdb == nil || len(docs) == 0 {
		return
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKey(provider, query), raw, c.ttl)
}
