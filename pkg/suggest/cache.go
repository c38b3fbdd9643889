package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"inboxd/pkg/logger"
)

// Cache stores suggestion lists keyed by (thread id, thread version).
// Entries for old versions are garbage: no caller ever asks for them
// again.
type Cache interface {
	Get(ctx context.Context, threadID string, version uint64) ([]string, bool)
	Set(ctx context.Context, threadID string, version uint64, suggestions []string)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, uint64) ([]string, bool) { return nil, false }
func (nopCache) Set(context.Context, string, uint64, []string)        {}

func cacheKey(threadID string, version uint64) string {
	return fmt.Sprintf("suggest:%s:%d", threadID, version)
}

// MemoryCache is the in-process cache used when redis is not
// configured. Each thread keeps only its latest version's entry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry // thread id -> latest entry
}

type memoryEntry struct {
	version     uint64
	suggestions []string
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, threadID string, version uint64) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[threadID]
	if !ok || e.version != version {
		return nil, false
	}
	return e.suggestions, true
}

// Set implements Cache. A newer version replaces the old entry; a stale
// write is dropped.
func (c *MemoryCache) Set(_ context.Context, threadID string, version uint64, suggestions []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[threadID]; ok && e.version > version {
		return
	}
	c.entries[threadID] = memoryEntry{version: version, suggestions: suggestions}
}

// RedisCache shares suggestion entries across instances through redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	logger.Info("suggestion_cache_connected", "addr", addr)
	return &RedisCache{client: client, ttl: 15 * time.Minute}, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, threadID string, version uint64) ([]string, bool) {
	raw, err := c.client.Get(ctx, cacheKey(threadID, version)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("suggestion_cache_get_failed", "thread", threadID, "error", err)
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set implements Cache. Cache write failures are logged, never
// surfaced; the cache is an optimization.
func (c *RedisCache) Set(ctx context.Context, threadID string, version uint64, suggestions []string) {
	raw, _ := json.Marshal(suggestions)
	if err := c.client.Set(ctx, cacheKey(threadID, version), raw, c.ttl).Err(); err != nil {
		logger.Warn("suggestion_cache_set_failed", "thread", threadID, "error", err)
	}
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
