package directory

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// CachedDirectory caches alias lookups from an inner directory in Redis.
// Alias rows change on the directory's publishing cadence rather than per
// request. Interaction lookups pass through so that tier attribution always
// reflects a live read.
//
// Redis failures never fail a lookup: the cache degrades to a passthrough
// and logs the error.
type CachedDirectory struct {
	inner      domain.DrugDirectory
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// cachedAlias is the stored envelope for an alias record.
type cachedAlias struct {
	Data      *domain.AliasRecord `json:"data"`
	CachedAt  time.Time           `json:"cachedAt"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// NewCachedDirectory creates a caching wrapper around inner. It verifies the
// Redis connection up front so deployment failures surface at startup.
func NewCachedDirectory(inner domain.DrugDirectory, config domain.CacheConfig, logger *logrus.Logger) (*CachedDirectory, error) {
	opts, err := redis.ParseURL(config.DirectoryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CachedDirectory{
		inner:      inner,
		redis:      client,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}, nil
}

// LookupAlias serves the alias from cache when present, consulting the inner
// directory on a miss and caching positive results.
func (c *CachedDirectory) LookupAlias(ctx context.Context, name string) (*domain.AliasRecord, error) {
	key := c.aliasKey(name)

	if rec, found := c.getAlias(ctx, key); found {
		return rec, nil
	}

	rec, err := c.inner.LookupAlias(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec != nil && ctx.Err() == nil {
		c.setAlias(ctx, key, rec)
	}
	return rec, nil
}

// LookupInteraction passes through to the inner directory.
func (c *CachedDirectory) LookupInteraction(ctx context.Context, codeA, codeB string) (*domain.InteractionRecord, error) {
	return c.inner.LookupInteraction(ctx, codeA, codeB)
}

// LookupInteractionByName passes through to the inner directory.
func (c *CachedDirectory) LookupInteractionByName(ctx context.Context, nameA, nameB string) (*domain.InteractionRecord, error) {
	return c.inner.LookupInteractionByName(ctx, nameA, nameB)
}

func (c *CachedDirectory) getAlias(ctx context.Context, key string) (*domain.AliasRecord, bool) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Alias cache read failed, falling through to directory")
		return nil, false
	}

	var cached cachedAlias
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false
	}

	return cached.Data, cached.Data != nil
}

func (c *CachedDirectory) setAlias(ctx context.Context, key string, rec *domain.AliasRecord) {
	cached := cachedAlias{
		Data:      rec,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(c.defaultTTL),
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal alias cache entry")
		return
	}

	if err := c.redis.Set(ctx, key, payload, c.defaultTTL).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Alias cache write failed")
	}
}

// aliasKey builds a stable cache key from the normalized drug name.
func (c *CachedDirectory) aliasKey(name string) string {
	hash := sha256.Sum256([]byte(domain.FallbackIdentity(name)))
	return fmt.Sprintf("directory:alias:%x", hash[:8])
}

// Ping checks the Redis connection.
func (c *CachedDirectory) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *CachedDirectory) Close() error {
	return c.redis.Close()
}
