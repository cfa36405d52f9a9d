package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PendingVerificationStore keeps one pending verification per email in MongoDB.
// Every mutation is a single-document atomic operation keyed by email and issue id,
// so a stale caller can never touch a newer issuance.
type PendingVerificationStore struct {
	pending *mongo.Collection
}

// NewPendingVerificationStore creates a store over the pending verification collection
func NewPendingVerificationStore(pending *mongo.Collection) *PendingVerificationStore {
	return &PendingVerificationStore{pending: pending}
}

// Replace stores p as the only pending verification for its email
func (s *PendingVerificationStore) Replace(ctx context.Context, p *models.PendingVerification) error {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "replace", s.pending.Name())
	defer cleanup()

	_, err := s.pending.ReplaceOne(ctx,
		bson.M{"email": p.Email},
		p,
		options.Replace().SetUpsert(true),
	)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// concurrent first issuance for the same email, the retry replaces the winner
		_, err = s.pending.ReplaceOne(ctx, bson.M{"email": p.Email}, p, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return fmt.Errorf("failed to store pending verification: %w", err)
	}
	return nil
}

// Find returns the pending verification for email or models.ErrPendingNotFound
func (s *PendingVerificationStore) Find(ctx context.Context, email string) (*models.PendingVerification, error) {
	var p models.PendingVerification
	err := s.pending.FindOne(ctx, bson.M{"email": email}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending verification: %w", err)
	}
	return &p, nil
}

// RecordMismatch counts one failed attempt and returns the new attempt count.
// It returns models.ErrAttemptsExhausted when the attempt budget was already spent
// and models.ErrPendingNotFound when the issuance is gone.
func (s *PendingVerificationStore) RecordMismatch(ctx context.Context, email, issueID string, maxAttempts int) (int, error) {
	var p models.PendingVerification
	err := s.pending.FindOneAndUpdate(ctx,
		bson.M{
			"email":    email,
			"issue_id": issueID,
			"attempts": bson.M{"$lt": maxAttempts},
		},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == nil {
		return p.Attempts, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}

	// distinguish a spent budget from a replaced or deleted issuance
	count, err := s.pending.CountDocuments(ctx, bson.M{"email": email, "issue_id": issueID})
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}
	if count == 0 {
		return 0, models.ErrPendingNotFound
	}
	return maxAttempts, models.ErrAttemptsExhausted
}

// Claim moves the issuance into the committing state. It succeeds when the entry is
// pending or when a previous claim is older than lease. It reports false when
// another caller holds the claim.
func (s *PendingVerificationStore) Claim(ctx context.Context, email, issueID string, now time.Time, lease time.Duration) (bool, error) {
	err := s.pending.FindOneAndUpdate(ctx,
		bson.M{
			"email":    email,
			"issue_id": issueID,
			"$or": bson.A{
				bson.M{"state": models.PendingStatePending},
				bson.M{"state": models.PendingStateCommitting, "claimed_at": bson.M{"$lt": now.Add(-lease)}},
			},
		},
		bson.M{"$set": bson.M{
			"state":      models.PendingStateCommitting,
			"claimed_at": now,
		}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim pending verification: %w", err)
	}
	return true, nil
}

// Release returns a claimed issuance to the pending state
func (s *PendingVerificationStore) Release(ctx context.Context, email, issueID string) error {
	_, err := s.pending.UpdateOne(ctx,
		bson.M{"email": email, "issue_id": issueID, "state": models.PendingStateCommitting},
		bson.M{
			"$set":   bson.M{"state": models.PendingStatePending},
			"$unset": bson.M{"claimed_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to release pending verification: %w", err)
	}
	return nil
}

// Delete removes the issuance. A newer issuance for the same email is left alone.
func (s *PendingVerificationStore) Delete(ctx context.Context, email, issueID string) error {
	_, err := s.pending.DeleteOne(ctx, bson.M{"email": email, "issue_id": issueID})
	if err != nil {
		return fmt.Errorf("failed to delete pending verification: %w", err)
	}
	return nil
}

// DeleteExpired removes every entry that expired before now and is not being committed
func (s *PendingVerificationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "delete_expired", s.pending.Name())
	defer cleanup()

	result, err := s.pending.DeleteMany(ctx, bson.M{
		"expires_at": bson.M{"$lt": now},
		"state":      bson.M{"$ne": models.PendingStateCommitting},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verifications: %w", err)
	}
	return result.DeletedCount, nil
}
