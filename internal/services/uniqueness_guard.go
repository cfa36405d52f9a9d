package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UniquenessGuard rejects drafts that collide with an active registration before
// any sequence number is spent. The partial unique indexes remain the final word.
type UniquenessGuard struct {
	registrations *mongo.Collection
}

// NewUniquenessGuard creates a guard over the registration collection
func NewUniquenessGuard(registrations *mongo.Collection) *UniquenessGuard {
	return &UniquenessGuard{registrations: registrations}
}

// CheckIdentity fails with a *models.ConflictError when the document number or email
// already belongs to an active registration
func (g *UniquenessGuard) CheckIdentity(ctx context.Context, draft models.RegistrationDraft) error {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "check_identity", g.registrations.Name())
	defer cleanup()

	if err := g.exists(ctx, bson.M{"document_number": draft.DocumentNumber, "active": true}); err != nil {
		return g.conflict(err, models.ConflictFieldDocumentNumber)
	}
	if err := g.exists(ctx, bson.M{"email": models.NormalizeEmail(draft.Email), "active": true}); err != nil {
		return g.conflict(err, models.ConflictFieldEmail)
	}
	return nil
}

// CheckTeamSlot fails with a *models.ConflictError when role is already held in the team
func (g *UniquenessGuard) CheckTeamSlot(ctx context.Context, teamNumber int64, role string) error {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "check_team_slot", g.registrations.Name())
	defer cleanup()

	err := g.exists(ctx, bson.M{"team_number": teamNumber, "role": role, "active": true})
	return g.conflict(err, models.ConflictFieldRoleInTeam)
}

var errTaken = errors.New("taken")

func (g *UniquenessGuard) exists(ctx context.Context, filter bson.M) error {
	err := g.registrations.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check uniqueness: %w", err)
	default:
		return errTaken
	}
}

func (g *UniquenessGuard) conflict(err error, field string) error {
	if errors.Is(err, errTaken) {
		return &models.ConflictError{Field: field}
	}
	return err
}
