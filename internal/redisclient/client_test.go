package redisclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisForTest starts a disposable Redis container and wraps it with the traced client
func setupRedisForTest(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("Skipping Redis integration tests: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := NewClient(redis.NewClient(opts))
	require.NoError(t, client.Ping(ctx).Err(), "Failed to connect to Redis")
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	assert.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestNewClusterClient(t *testing.T) {
	client := NewClusterClient(redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{"localhost:0"}}))
	assert.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestClient_ErrorTracing(t *testing.T) {
	client := NewClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))

	ctx := context.Background()
	assert.Error(t, client.Get(ctx, "test:unreachable").Err())
	assert.Error(t, client.Incr(ctx, "test:unreachable").Err())
	assert.Error(t, client.Ping(ctx).Err())
}

func TestClient_GetSetDel(t *testing.T) {
	client := setupRedisForTest(t)
	ctx := context.Background()

	t.Run("Get existing key", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "test:get:key1", "value1", 10*time.Second).Err())

		cmd := client.Get(ctx, "test:get:key1")
		require.NoError(t, cmd.Err())
		assert.Equal(t, "value1", cmd.Val())
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		cmd := client.Get(ctx, "test:get:nonexistent")
		assert.Equal(t, redis.Nil, cmd.Err())
	})

	t.Run("Del removes keys", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "test:del:a", "1", 0).Err())
		require.NoError(t, client.Set(ctx, "test:del:b", "2", 0).Err())

		deleted, err := client.Del(ctx, "test:del:a", "test:del:b", "test:del:missing").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})
}

func TestClient_IncrExpireTTL(t *testing.T) {
	client := setupRedisForTest(t)
	ctx := context.Background()

	n, err := client.Incr(ctx, "test:counter").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := client.Expire(ctx, "test:counter", time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "test:counter").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestClient_ConcurrentIncr(t *testing.T) {
	client := setupRedisForTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Incr(ctx, "test:concurrent").Err())
		}()
	}
	wg.Wait()

	val, err := client.Get(ctx, "test:concurrent").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(50), val)
}

func TestClient_CancelledContext(t *testing.T) {
	client := setupRedisForTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, client.Get(ctx, "test:cancelled").Err())
	assert.Error(t, client.Set(ctx, "test:cancelled", "v", 0).Err())
}

func TestClient_IncrWithExpire(t *testing.T) {
	client := setupRedisForTest(t)
	ctx := context.Background()

	n, ttl, err := client.IncrWithExpire(ctx, "test:window", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Greater(t, ttl, 50*time.Second)

	// later increments keep the window that is already running
	require.NoError(t, client.Expire(ctx, "test:window", 30*time.Second).Err())
	n, ttl, err = client.IncrWithExpire(ctx, "test:window", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.LessOrEqual(t, ttl, 30*time.Second)
	assert.Greater(t, ttl, time.Duration(0))
}
