package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TeamResolver maps a group name to the team a registration joins
type TeamResolver struct {
	groups *mongo.Collection
	logger *logging.SafeLogger
}

// NewTeamResolver creates a resolver over the team group collection
func NewTeamResolver(groups *mongo.Collection, logger *logging.SafeLogger) *TeamResolver {
	return &TeamResolver{
		groups: groups,
		logger: logger,
	}
}

// exactNameFilter matches name case-insensitively and nothing else
func exactNameFilter(name string) bson.M {
	pattern := "^" + regexp.QuoteMeta(strings.TrimSpace(name)) + "$"
	return bson.M{"name": bson.M{"$regex": primitive.Regex{Pattern: pattern, Options: "i"}}}
}

// Resolve looks up an active group by case-insensitive name. It never creates groups.
func (r *TeamResolver) Resolve(ctx context.Context, name string) (*models.TeamAssignment, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrUnknownGroup
	}

	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "resolve_team", r.groups.Name())
	defer cleanup()

	filter := exactNameFilter(name)
	filter["active"] = true

	var group models.TeamGroup
	err := utils.FindOneWithTimeout(ctx, r.groups, filter, &group, utils.DefaultQueryTimeout)
	if errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Debug("group not found", zap.String("group_name", name))
		return nil, models.ErrUnknownGroup
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group: %w", err)
	}

	assignment := group.Assignment()
	return &assignment, nil
}
