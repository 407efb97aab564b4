package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockwise/internal/config"
)

type seriesParams struct {
	Granularity string   `json:"granularity"`
	Items       []string `json:"items"`
}

type seriesResult struct {
	Keys  []string  `json:"keys"`
	Units []float64 `json:"units"`
}

func newTestCache(t *testing.T) (AnalyticsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAnalyticsCache(client, time.Minute), mr
}

func TestRedisAnalyticsCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	params := seriesParams{Granularity: "month", Items: []string{"A"}}

	var got seriesResult
	found, err := c.Get(ctx, 1, "series", params, &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := seriesResult{Keys: []string{"2024-01"}, Units: []float64{10}}
	require.NoError(t, c.Set(ctx, 1, "series", params, want))

	found, err = c.Get(ctx, 1, "series", params, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	key, err := BuildMemoKey(1, "series", params)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestRedisAnalyticsCacheVersionIsolation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	params := seriesParams{Granularity: "month"}

	v1, err := c.NextVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, v1, "series", params, seriesResult{Keys: []string{"old"}}))

	v2, err := c.NextVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)

	var got seriesResult
	found, err := c.Get(ctx, v2, "series", params, &got)
	require.NoError(t, err)
	assert.False(t, found, "entries of an older dataset version are not served")
}

func TestRedisAnalyticsCachePurgeStale(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	v1, err := c.NextVersion(ctx)
	require.NoError(t, err)
	for _, kind := range []string{"series", "forecast", "costs"} {
		require.NoError(t, c.Set(ctx, v1, kind, seriesParams{}, seriesResult{}))
	}
	v2, err := c.NextVersion(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, v2, "series", seriesParams{}, seriesResult{Keys: []string{"new"}}))
	require.NoError(t, c.Set(ctx, v2*10+v1, "series", seriesParams{}, seriesResult{}))

	require.NoError(t, c.PurgeStale(ctx, v2))

	current, err := BuildMemoKey(v2, "series", seriesParams{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{versionKey, current}, mr.Keys())

	var got seriesResult
	found, err := c.Get(ctx, v2, "series", seriesParams{}, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"new"}, got.Keys)
}

func TestBuildMemoKeyDependsOnParams(t *testing.T) {
	a, err := BuildMemoKey(3, "series", seriesParams{Granularity: "month", Items: []string{"A"}})
	require.NoError(t, err)
	b, err := BuildMemoKey(3, "series", seriesParams{Granularity: "month", Items: []string{"B"}})
	require.NoError(t, err)
	again, err := BuildMemoKey(3, "series", seriesParams{Granularity: "month", Items: []string{"A"}})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
	assert.Contains(t, a, "stockwise:memo:series:v3:")

	_, err = BuildMemoKey(1, "bad", make(chan int))
	assert.Error(t, err)
}

func TestNoopAnalyticsCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewAnalyticsCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, 1, "series", seriesParams{}, seriesResult{}))
	found, err := c.Get(ctx, 1, "series", seriesParams{}, &seriesResult{})
	require.NoError(t, err)
	assert.False(t, found)

	v1, _ := c.NextVersion(ctx)
	v2, _ := c.NextVersion(ctx)
	assert.Equal(t, v1+1, v2)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, redisIOTimeout, opts.ReadTimeout)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@example:6379/1"})
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}
