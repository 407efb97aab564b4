package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockwise/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	memoKeyPrefix     = "stockwise:memo"
	versionKey        = "stockwise:dataset_version"
	memoScanBatchSize = 100
)

// AnalyticsCache memoizes engine results keyed by the dataset version and a
// hash of the call parameters. A new version makes older entries unreachable.
type AnalyticsCache interface {
	// Get decodes the cached value into dest. found is false on a miss.
	Get(ctx context.Context, version int64, kind string, params any, dest any) (found bool, err error)
	Set(ctx context.Context, version int64, kind string, params any, value any) error
	// NextVersion allocates a dataset version that has never been used.
	NextVersion(ctx context.Context) (int64, error)
	// PurgeStale deletes memo entries of every version except current.
	PurgeStale(ctx context.Context, current int64) error
}

type redisAnalyticsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAnalyticsCache struct {
	version atomic.Int64
}

func NewAnalyticsCache(cfg config.CacheConfig) (AnalyticsCache, error) {
	if !cfg.Enabled {
		return &noopAnalyticsCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisAnalyticsCache(client, ttl), nil
}

// NewRedisAnalyticsCache wraps an existing client.
func NewRedisAnalyticsCache(client *redis.Client, ttl time.Duration) AnalyticsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisAnalyticsCache{client: client, ttl: ttl}
}

func NewNoopAnalyticsCache() AnalyticsCache {
	return &noopAnalyticsCache{}
}

func (c *redisAnalyticsCache) Get(ctx context.Context, version int64, kind string, params any, dest any) (bool, error) {
	key, err := BuildMemoKey(version, kind, params)
	if err != nil {
		return false, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode %s cache: %w", kind, err)
	}
	return true, nil
}

func (c *redisAnalyticsCache) Set(ctx context.Context, version int64, kind string, params any, value any) error {
	key, err := BuildMemoKey(version, kind, params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", kind, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAnalyticsCache) NextVersion(ctx context.Context) (int64, error) {
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return ver, nil
}

func (c *redisAnalyticsCache) PurgeStale(ctx context.Context, current int64) error {
	keep := fmt.Sprintf(":v%d:", current)
	return deleteKeysWithPrefix(ctx, c.client, memoKeyPrefix+":", memoScanBatchSize, func(key string) bool {
		return !strings.Contains(key, keep)
	})
}

func (n *noopAnalyticsCache) Get(ctx context.Context, version int64, kind string, params any, dest any) (bool, error) {
	return false, nil
}

func (n *noopAnalyticsCache) Set(ctx context.Context, version int64, kind string, params any, value any) error {
	return nil
}

func (n *noopAnalyticsCache) NextVersion(ctx context.Context) (int64, error) {
	return n.version.Add(1), nil
}

func (n *noopAnalyticsCache) PurgeStale(ctx context.Context, current int64) error {
	return nil
}

// BuildMemoKey returns prefix:kind:v<version>:<sha1 of params as JSON>.
// params must encode deterministically; callers pass structs with sorted
// slices rather than maps of sets.
func BuildMemoKey(version int64, kind string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode %s cache params: %w", kind, err)
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("%s:%s:v%d:%s", memoKeyPrefix, kind, version, hex.EncodeToString(sum[:])), nil
}
