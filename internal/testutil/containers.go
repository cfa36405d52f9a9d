// Package testutil starts disposable MongoDB and Redis containers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desafio-dunas/registration-api/internal/config"
	"github.com/desafio-dunas/registration-api/internal/redisclient"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Containers holds the running containers shared by a test package
type Containers struct {
	mu sync.Mutex

	mongoContainer *mongodb.MongoDBContainer
	redisContainer *redis.RedisContainer
	mongoClient    *mongo.Client
	redisClient    *redisclient.Client
	databases      int
}

// NewContainers returns an empty set; containers start on first use
func NewContainers() *Containers {
	return &Containers{}
}

// Mongo returns a fresh database with the registration schema applied.
// The database is dropped when the test ends.
func (c *Containers) Mongo(t *testing.T) *mongo.Database {
	t.Helper()
	skipIfUnavailable(t)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	if c.mongoClient == nil {
		container, err := mongodb.Run(ctx, "mongo:7.0")
		if err != nil {
			t.Skipf("Skipping MongoDB integration test: %v", err)
		}
		uri, err := container.ConnectionString(ctx)
		require.NoError(t, err, "Failed to get MongoDB connection string")

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err, "Failed to connect to MongoDB")
		require.NoError(t, client.Ping(ctx, nil), "Failed to ping MongoDB")

		c.mongoContainer = container
		c.mongoClient = client
	}

	c.databases++
	db := c.mongoClient.Database(fmt.Sprintf("registration_test_%d_%d", time.Now().UnixNano(), c.databases))
	require.NoError(t, config.EnsureSchema(ctx, db), "Failed to apply schema")

	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	return db
}

// Redis returns the shared Redis client with an empty keyspace
func (c *Containers) Redis(t *testing.T) *redisclient.Client {
	t.Helper()
	skipIfUnavailable(t)

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	if c.redisClient == nil {
		container, err := redis.Run(ctx, "redis:7-alpine")
		if err != nil {
			t.Skipf("Skipping Redis integration test: %v", err)
		}
		uri, err := container.ConnectionString(ctx)
		require.NoError(t, err, "Failed to get Redis connection string")
		opts, err := goredis.ParseURL(uri)
		require.NoError(t, err)

		c.redisContainer = container
		c.redisClient = redisclient.NewClient(goredis.NewClient(opts))
		require.NoError(t, c.redisClient.Ping(ctx).Err(), "Failed to ping Redis")
	}

	require.NoError(t, c.redisClient.FlushDB(ctx).Err())
	return c.redisClient
}

// Terminate stops every container that was started
func (c *Containers) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := context.Background()
	if c.mongoClient != nil {
		_ = c.mongoClient.Disconnect(ctx)
	}
	if c.mongoContainer != nil {
		_ = c.mongoContainer.Terminate(ctx)
	}
	if c.redisContainer != nil {
		_ = c.redisContainer.Terminate(ctx)
	}
}

func skipIfUnavailable(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}
