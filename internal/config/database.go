package config

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB client
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
)

// namespaceExistsCode is returned by createCollection when the collection is already there
const namespaceExistsCode = 48

// InitMongoDB initializes the MongoDB connection
func InitMongoDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		log.Fatal(err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := EnsureSchema(context.Background(), MongoDB); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}
	startIndexMaintenance()

	logging.Logger.Info("Connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
}

// InitRedis initializes the Redis connection
func InitRedis() {
	target := AppConfig.RedisURI
	if len(AppConfig.RedisClusterAddrs) > 0 {
		Redis = redisclient.NewClusterClient(redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        AppConfig.RedisClusterAddrs,
			Password:     AppConfig.RedisPassword,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 5,
		}))
		target = strings.Join(AppConfig.RedisClusterAddrs, ",")
	} else {
		Redis = redisclient.NewClient(redis.NewClient(&redis.Options{
			Addr:         AppConfig.RedisURI,
			Password:     AppConfig.RedisPassword,
			DB:           AppConfig.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 5,
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Error("failed to connect to Redis",
			zap.String("uri", target),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to Redis",
		zap.String("uri", target))
}

// maskMongoURI masks sensitive information in MongoDB URI
func maskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	return "mongodb://****:****@" + uri[at+1:]
}

// collectionNames returns the configured collection names, falling back to defaults
// so tests can call EnsureSchema without loading the environment.
func collectionNames() (registrations, pending, groups, counters string) {
	registrations, pending, groups, counters = "registrations", "pending_verifications", "team_groups", "counters"
	if AppConfig == nil {
		return
	}
	if AppConfig.RegistrationCollection != "" {
		registrations = AppConfig.RegistrationCollection
	}
	if AppConfig.PendingVerificationCollection != "" {
		pending = AppConfig.PendingVerificationCollection
	}
	if AppConfig.TeamGroupCollection != "" {
		groups = AppConfig.TeamGroupCollection
	}
	if AppConfig.CounterCollection != "" {
		counters = AppConfig.CounterCollection
	}
	return
}

// EnsureSchema creates the registration validator and every index the
// uniqueness rules rely on. It is safe to run concurrently from several instances.
func EnsureSchema(ctx context.Context, db *mongo.Database) error {
	logger := zap.L().Named("database")
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	registrations, pending, groups, counters := collectionNames()

	if err := ensureRegistrationValidator(ctx, logger, db, registrations); err != nil {
		return err
	}

	activeOnly := bson.D{{Key: "active", Value: true}}
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{registrations, mongo.IndexModel{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetName("number_1").SetUnique(true),
		}},
		{registrations, mongo.IndexModel{
			Keys: bson.D{{Key: "document_number", Value: 1}},
			Options: options.Index().SetName("document_number_active").SetUnique(true).
				SetPartialFilterExpression(activeOnly),
		}},
		{registrations, mongo.IndexModel{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_active").SetUnique(true).
				SetPartialFilterExpression(activeOnly),
		}},
		{registrations, mongo.IndexModel{
			Keys: bson.D{{Key: "team_number", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("team_role_active").SetUnique(true).
				SetPartialFilterExpression(activeOnly),
		}},
		{registrations, mongo.IndexModel{
			Keys:    bson.D{{Key: "group_name", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("group_name_1_role_1"),
		}},
		{registrations, mongo.IndexModel{
			Keys:    bson.D{{Key: "registered_at", Value: -1}},
			Options: options.Index().SetName("registered_at_-1"),
		}},
		{pending, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_1").SetUnique(true),
		}},
		{pending, mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_ttl").SetExpireAfterSeconds(0),
		}},
		{groups, mongo.IndexModel{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_ci").SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		}},
		{groups, mongo.IndexModel{
			Keys:    bson.D{{Key: "team_number", Value: 1}},
			Options: options.Index().SetName("team_number_1").SetUnique(true),
		}},
	}

	for _, idx := range indexes {
		if err := ensureIndex(ctx, logger, db.Collection(idx.collection), idx.model); err != nil {
			return err
		}
	}

	// counters only needs the implicit _id index
	logger.Debug("counter collection uses _id index", zap.String("collection", counters))

	logger.Info("all required indexes verified")
	return nil
}

// ensureIndex creates the index unless one with the same name already exists
func ensureIndex(ctx context.Context, logger *zap.Logger, collection *mongo.Collection, model mongo.IndexModel) error {
	name := *model.Options.Name

	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		logger.Error("failed to list indexes", zap.String("collection", collection.Name()), zap.Error(err))
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			continue
		}
		if existing, ok := index["name"].(string); ok && existing == name {
			logger.Debug("index already exists",
				zap.String("collection", collection.Name()),
				zap.String("index", name))
			return nil
		}
	}

	_, err = collection.Indexes().CreateOne(ctx, model)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logger.Info("index already exists (created by another instance)",
				zap.String("collection", collection.Name()),
				zap.String("index", name))
			return nil
		}
		logger.Error("failed to create index",
			zap.String("collection", collection.Name()),
			zap.String("index", name),
			zap.Error(err))
		return err
	}

	logger.Info("created index",
		zap.String("collection", collection.Name()),
		zap.String("index", name))
	return nil
}

// ensureRegistrationValidator installs a $jsonSchema validator so malformed
// records are rejected by the database even if application validation is bypassed.
func ensureRegistrationValidator(ctx context.Context, logger *zap.Logger, db *mongo.Database, name string) error {
	validator := bson.M{"$jsonSchema": registrationSchema()}

	err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
	if err == nil {
		logger.Info("created registration collection with validator", zap.String("collection", name))
		return nil
	}

	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code != namespaceExistsCode {
		logger.Error("failed to create registration collection", zap.String("collection", name), zap.Error(err))
		return err
	}

	// collection exists, refresh the validator in case it changed
	res := db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	})
	if err := res.Err(); err != nil {
		logger.Warn("failed to update registration validator", zap.String("collection", name), zap.Error(err))
	}
	return nil
}

func registrationSchema() bson.M {
	enum := func(values ...string) bson.M {
		return bson.M{"bsonType": "string", "enum": values}
	}
	return bson.M{
		"bsonType": "object",
		"required": bson.A{
			"number", "team_number", "role", "group_name", "first_names", "last_names",
			"age", "document_number", "email", "status", "active",
		},
		"properties": bson.M{
			"number":          bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
			"team_number":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
			"role":            enum("pilot", "co-pilot", "companion-1", "companion-2", "companion-3"),
			"experience":      enum("expert", "intermediate", "beginner"),
			"blood_type":      enum("A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"),
			"vehicle_type":    enum("motorcycle", "quad", "utv", "sand-rail", "pickup"),
			"arrival_day":     enum("thursday", "friday", "saturday"),
			"status":          enum("pending", "confirmed", "cancelled"),
			"document_number": bson.M{"bsonType": "string", "pattern": "^[0-9]{8}$"},
			"age":             bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 16, "maximum": 80},
			"active":          bson.M{"bsonType": "bool"},
		},
	}
}

// startIndexMaintenance starts a goroutine that periodically ensures indexes exist
func startIndexMaintenance() {
	logger := zap.L().Named("database")

	interval := AppConfig.IndexMaintenanceInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := EnsureSchema(context.Background(), MongoDB); err != nil {
				logger.Error("periodic index check failed", zap.Error(err))
			}
		}
	}()

	logger.Info("started index maintenance routine",
		zap.Duration("interval", interval))
}
