// Package caching provides the analysis result cache behind the agent
// tools. Every analysis read path is side effect free, so identical tool
// invocations inside the TTL window can be served from cache without
// changing observable behavior.
package caching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "medsafety:agent:result:"

// Config configures the analysis result cache.
type Config struct {
	// RedisClient enables the shared cache layer. Nil runs memory-only.
	RedisClient *redis.Client
	// DefaultTTL bounds entry lifetime when Set is called with a zero TTL.
	DefaultTTL time.Duration
	// MaxEntries caps the in-memory cache; the least recently accessed
	// entry is evicted once the cap is reached.
	MaxEntries int
	// Enabled short-circuits every operation when false.
	Enabled bool
}

// Entry is the stored envelope for one cached tool result.
type Entry struct {
	Tool         string          `json:"tool"`
	Result       json.RawMessage `json:"result"`
	CreatedAt    time.Time       `json:"createdAt"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	Hits         int64           `json:"hits"`
	LastAccessed time.Time       `json:"lastAccessed"`
}

// Stats tracks cache effectiveness counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// AnalysisCache caches serialized tool results in memory, with an optional
// Redis layer shared across processes. Redis failures never fail a lookup;
// the cache degrades to memory-only and logs the error.
type AnalysisCache struct {
	config Config
	logger *logrus.Logger

	mu      sync.Mutex
	entries map[string]*Entry

	statsMu sync.Mutex
	stats   Stats
}

// New creates an analysis cache. A nil logger falls back to the standard
// logrus logger.
func New(config Config, logger *logrus.Logger) *AnalysisCache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1024
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &AnalysisCache{
		config:  config,
		logger:  logger,
		entries: make(map[string]*Entry),
	}
}

// Key derives the cache key for a tool invocation from the tool name and
// its parameter struct. Equal parameters always produce equal keys.
func Key(tool string, params any) string {
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(append([]byte(tool+"::"), data...))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for the invocation, if present and fresh.
// Expired entries are removed on access. A Redis hit is promoted into the
// memory layer.
func (c *AnalysisCache) Get(ctx context.Context, tool string, params any) (json.RawMessage, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	key := Key(tool, params)
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		if now.Before(entry.ExpiresAt) {
			entry.Hits++
			entry.LastAccessed = now
			result := entry.Result
			c.mu.Unlock()
			c.recordHit()
			return result, true
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if c.config.RedisClient != nil {
		if entry, ok := c.getRedis(ctx, tool, key); ok {
			c.mu.Lock()
			c.evictIfNeeded()
			c.entries[key] = entry
			c.mu.Unlock()
			c.recordHit()
			return entry.Result, true
		}
	}

	c.recordMiss()
	return nil, false
}

// Set stores a result for the invocation. A canceled request never
// populates the cache, so abandoned analyses leave no trace behind.
func (c *AnalysisCache) Set(ctx context.Context, tool string, params any, result any, ttl time.Duration) error {
	if !c.config.Enabled {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result for cache: %w", err)
	}

	now := time.Now()
	entry := &Entry{
		Tool:         tool,
		Result:       data,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
	}

	key := Key(tool, params)

	c.mu.Lock()
	c.evictIfNeeded()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.config.RedisClient != nil {
		payload, err := json.Marshal(entry)
		if err == nil {
			if err := c.config.RedisClient.Set(ctx, c.redisKey(tool, key), payload, ttl).Err(); err != nil {
				c.logger.WithError(err).WithField("tool", tool).Debug("Redis cache store failed")
			}
		}
	}

	return nil
}

// Invalidate drops every cached result for the tool.
func (c *AnalysisCache) Invalidate(ctx context.Context, tool string) error {
	c.mu.Lock()
	for key, entry := range c.entries {
		if entry.Tool == tool {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if c.config.RedisClient != nil {
		keys, err := c.config.RedisClient.Keys(ctx, redisKeyPrefix+tool+":*").Result()
		if err != nil {
			return fmt.Errorf("listing cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.config.RedisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("dropping cache keys: %w", err)
			}
		}
	}

	return nil
}

// Clear drops every cached result and resets the counters.
func (c *AnalysisCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats = Stats{}
	c.statsMu.Unlock()

	if c.config.RedisClient != nil {
		keys, err := c.config.RedisClient.Keys(ctx, redisKeyPrefix+"*").Result()
		if err != nil {
			return fmt.Errorf("listing cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.config.RedisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("dropping cache keys: %w", err)
			}
		}
	}

	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *AnalysisCache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	stats := c.stats
	stats.Entries = entries
	return stats
}

// HitRatio reports the fraction of lookups served from cache.
func (c *AnalysisCache) HitRatio() float64 {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total)
}

// Healthy verifies the memory layer with a write-read round trip and pings
// Redis when configured.
func (c *AnalysisCache) Healthy(ctx context.Context) bool {
	if !c.config.Enabled {
		return true
	}

	probe := "health:" + time.Now().Format("20060102150405.000")
	c.mu.Lock()
	c.entries[probe] = &Entry{Tool: "health", ExpiresAt: time.Now().Add(time.Minute)}
	_, ok := c.entries[probe]
	delete(c.entries, probe)
	c.mu.Unlock()
	if !ok {
		return false
	}

	if c.config.RedisClient != nil {
		if err := c.config.RedisClient.Ping(ctx).Err(); err != nil {
			return false
		}
	}

	return true
}

// getRedis fetches and decodes an entry from the Redis layer, deleting it
// when expired.
func (c *AnalysisCache) getRedis(ctx context.Context, tool, key string) (*Entry, bool) {
	data, err := c.config.RedisClient.Get(ctx, c.redisKey(tool, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("Redis cache read failed")
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.config.RedisClient.Del(ctx, c.redisKey(tool, key))
		return nil, false
	}

	now := time.Now()
	if !now.Before(entry.ExpiresAt) {
		c.config.RedisClient.Del(ctx, c.redisKey(tool, key))
		return nil, false
	}

	entry.Hits++
	entry.LastAccessed = now
	return &entry, true
}

func (c *AnalysisCache) redisKey(tool, key string) string {
	return redisKeyPrefix + tool + ":" + key
}

// evictIfNeeded removes least recently accessed entries until the cache is
// under its cap. Callers must hold mu.
func (c *AnalysisCache) evictIfNeeded() {
	for len(c.entries) >= c.config.MaxEntries {
		var oldestKey string
		oldestTime := time.Now().Add(time.Hour)

		for key, entry := range c.entries {
			if entry.LastAccessed.Before(oldestTime) {
				oldestTime = entry.LastAccessed
				oldestKey = key
			}
		}

		if oldestKey == "" {
			return
		}
		delete(c.entries, oldestKey)
		c.recordEviction()
	}
}

func (c *AnalysisCache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *AnalysisCache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func (c *AnalysisCache) recordEviction() {
	c.statsMu.Lock()
	c.stats.Evictions++
	c.statsMu.Unlock()
}
