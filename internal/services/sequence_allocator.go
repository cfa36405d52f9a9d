package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// SequenceAllocator hands out strictly increasing numbers per counter key.
// Every allocation is a single atomic findOneAndUpdate on the counter document,
// so numbers are unique across goroutines and instances.
type SequenceAllocator struct {
	counters *mongo.Collection
	logger   *logging.SafeLogger
}

// NewSequenceAllocator creates an allocator backed by the given counter collection
func NewSequenceAllocator(counters *mongo.Collection, logger *logging.SafeLogger) *SequenceAllocator {
	return &SequenceAllocator{
		counters: counters,
		logger:   logger,
	}
}

// Next returns the next value for key. The first call for a key returns 1.
// Failures wrap models.ErrAllocationFailure.
func (a *SequenceAllocator) Next(ctx context.Context, key string) (int64, error) {
	ctx, span, cleanup := utils.TraceDatabaseOperation(ctx, "allocate", a.counters.Name())
	defer cleanup()

	seq, err := a.increment(ctx, key)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// two first-time upserts raced on the same _id, the loser retries as a plain increment
		seq, err = a.increment(ctx, key)
	}
	if err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"counter.key": key})
		observability.SequenceAllocations.WithLabelValues(key, "error").Inc()
		a.logger.Error("sequence allocation failed", zap.String("counter", key), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", models.ErrAllocationFailure, err)
	}

	observability.SequenceAllocations.WithLabelValues(key, "success").Inc()
	return seq, nil
}

func (a *SequenceAllocator) increment(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter models.Counter
	err := a.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Current returns the last value handed out for key, 0 if none
func (a *SequenceAllocator) Current(ctx context.Context, key string) (int64, error) {
	var counter models.Counter
	err := a.counters.FindOne(ctx, bson.M{"_id": key}).Decode(&counter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return counter.Seq, nil
}

// Seed raises the counter for key to the highest value of field in source.
// It never lowers a counter, so running it on every startup is safe.
func (a *SequenceAllocator) Seed(ctx context.Context, key string, source *mongo.Collection, field string) (int64, error) {
	var top bson.M
	err := source.FindOne(ctx, bson.M{field: bson.M{"$exists": true}},
		options.FindOne().
			SetSort(bson.D{{Key: field, Value: -1}}).
			SetProjection(bson.M{field: 1}),
	).Decode(&top)

	var highest int64
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
	case err != nil:
		return 0, fmt.Errorf("failed to read highest %s: %w", field, err)
	default:
		highest = toInt64(top[field])
	}

	err = a.raiseTo(ctx, key, highest)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// lost the first-time upsert to a concurrent Next or Seed, the retry is a plain update
		err = a.raiseTo(ctx, key, highest)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to seed counter %s: %w", key, err)
	}

	current, err := a.Current(ctx, key)
	if err != nil {
		return 0, err
	}

	a.logger.Info("counter seeded",
		zap.String("counter", key),
		zap.Int64("highest_existing", highest),
		zap.Int64("current", current))
	return current, nil
}

func (a *SequenceAllocator) raiseTo(ctx context.Context, key string, floor int64) error {
	_, err := a.counters.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	return err
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
