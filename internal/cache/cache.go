// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides an optional Redis-backed response cache for live
// provider fetches. A nil *Cache is valid and disables caching, so callers
// never branch on configuration.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/harvest-engine/pkg/types"
)

const keyPrefix = "harvest:response:"

// Cache stores raw provider response bodies keyed by the resolved request
// signature, so repeated api_direct fetches within the TTL skip the wire.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis per cfg. When the cache is disabled it returns
// (nil, nil); a nil Cache is a no-op.
func New(ctx context.Context, cfg types.CacheConfig) (*Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key derives the cache key for one resolved request: method, URL and
// body hashed so credentials embedded in the URL never appear in Redis.
func Key(method, url, body string) string {
	sum := sha256.Sum256([]byte(method + "\x00" + url + "\x00" + body))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached body for key, or (nil, false) on a miss. Redis
// failures degrade to a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is an ordinary miss; an unreachable cache degrades to
		// one as well so the fetch still works.
		return nil, false
	}
	return data, true
}

// Put stores a response body under key for the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, body []byte) error {
	if c == nil {
		return nil
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching response: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
