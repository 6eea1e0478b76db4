//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Cache {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	cache, err := NewCache(ctx, Config{URL: "redis://" + endpoint}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	cache := startRedis(t)
	store := NewSummaryCache(cache, time.Minute)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "coverage", "t1", "")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "coverage", "t1", "", []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "survey", "t1", "msf", []byte(`{"b":2}`)))
	require.NoError(t, store.Put(ctx, "coverage", "t10", "", []byte(`{"c":3}`)))

	data, ok, err := store.Get(ctx, "coverage", "t1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(data))

	ttl, err := cache.TTL(ctx, SummaryKey(cache.Prefix(), "coverage", "t1", ""))
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, store.Invalidate(ctx, "t1"))

	_, ok, _ = store.Get(ctx, "survey", "t1", "msf")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "coverage", "t10", "")
	assert.True(t, ok, "other trainees are untouched")
}
