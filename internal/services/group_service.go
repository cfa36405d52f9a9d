package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/redisclient"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const groupListCacheKey = "team_groups:active"

// TeamGroupService manages the groups registrations can join
type TeamGroupService struct {
	groups    *mongo.Collection
	allocator NumberAllocator
	cache     *redisclient.Client
	cacheTTL  time.Duration
	logger    *logging.SafeLogger
}

// NewTeamGroupService creates a group service. cache may be nil.
func NewTeamGroupService(groups *mongo.Collection, allocator NumberAllocator, cache *redisclient.Client, cacheTTL time.Duration, logger *logging.SafeLogger) *TeamGroupService {
	return &TeamGroupService{
		groups:    groups,
		allocator: allocator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// CreateGroup registers a new group and assigns it the next team number
func (s *TeamGroupService) CreateGroup(ctx context.Context, req models.TeamGroupRequest) (*models.TeamGroup, error) {
	ctx, span, cleanup := utils.TraceBusinessLogic(ctx, "create_team_group")
	defer cleanup()

	req, err := checkGroupRequest(req)
	if err != nil {
		return nil, err
	}
	group := &models.TeamGroup{
		Name:         req.Name,
		Channel:      req.Channel,
		Contact:      req.Contact,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Active:       true,
	}

	err = s.groups.FindOne(ctx, exactNameFilter(group.Name)).Err()
	if err == nil {
		return nil, models.ErrGroupNameExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to check existing group: %w", err)
	}

	teamNumber, err := s.allocator.Next(ctx, models.TeamNumberCounter)
	if err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		return nil, err
	}
	group.TeamNumber = teamNumber
	group.BeforeCreate()

	result, err := s.groups.InsertOne(ctx, group)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// the case-insensitive unique index caught a concurrent create
			return nil, models.ErrGroupNameExists
		}
		utils.RecordErrorInSpan(span, err, nil)
		return nil, fmt.Errorf("failed to create team group: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		group.ID = id
	}

	s.invalidateCache(ctx)

	s.logger.Info("team group created",
		zap.String("name", group.Name),
		zap.Int64("team_number", group.TeamNumber))
	return group, nil
}

// GetGroup returns an active group by team number
func (s *TeamGroupService) GetGroup(ctx context.Context, teamNumber int64) (*models.TeamGroup, error) {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "get_group", s.groups.Name())
	defer cleanup()

	var group models.TeamGroup
	err := s.groups.FindOne(ctx, bson.M{"team_number": teamNumber, "active": true}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get team group: %w", err)
	}
	return &group, nil
}

// UpdateGroup replaces the editable fields of an active group. The team number never
// changes and registrations already committed keep the channel and contact they were
// given.
func (s *TeamGroupService) UpdateGroup(ctx context.Context, teamNumber int64, req models.TeamGroupRequest) (*models.TeamGroup, error) {
	ctx, span, cleanup := utils.TraceBusinessLogic(ctx, "update_team_group")
	defer cleanup()

	req, err := checkGroupRequest(req)
	if err != nil {
		return nil, err
	}

	taken := exactNameFilter(req.Name)
	taken["team_number"] = bson.M{"$ne": teamNumber}
	err = s.groups.FindOne(ctx, taken).Err()
	if err == nil {
		return nil, models.ErrGroupNameExists
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to check existing group: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"name":          req.Name,
		"channel":       req.Channel,
		"contact":       req.Contact,
		"contact_email": req.ContactEmail,
		"contact_phone": req.ContactPhone,
		"updated_at":    time.Now(),
	}}

	var group models.TeamGroup
	err = s.groups.FindOneAndUpdate(ctx,
		bson.M{"team_number": teamNumber, "active": true},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrGroupNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrGroupNameExists
		}
		utils.RecordErrorInSpan(span, err, nil)
		return nil, fmt.Errorf("failed to update team group: %w", err)
	}

	s.invalidateCache(ctx)

	s.logger.Info("team group updated",
		zap.String("name", group.Name),
		zap.Int64("team_number", group.TeamNumber))
	return &group, nil
}

// DeactivateGroup retires a group so new registrations can no longer join it.
// The document and its team number are kept for the registrations that reference it.
func (s *TeamGroupService) DeactivateGroup(ctx context.Context, teamNumber int64) error {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "deactivate_group", s.groups.Name())
	defer cleanup()

	result, err := s.groups.UpdateOne(ctx,
		bson.M{"team_number": teamNumber, "active": true},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now()}},
	)
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("deactivate_group", "error").Inc()
		return fmt.Errorf("failed to deactivate team group: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrGroupNotFound
	}
	observability.DatabaseOperations.WithLabelValues("deactivate_group", "success").Inc()

	s.invalidateCache(ctx)

	s.logger.Info("team group deactivated", zap.Int64("team_number", teamNumber))
	return nil
}

// ListGroups returns active groups ordered by team number
func (s *TeamGroupService) ListGroups(ctx context.Context) (*models.TeamGroupListResponse, error) {
	if cached, ok := s.cachedList(ctx); ok {
		return cached, nil
	}

	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "list_groups", s.groups.Name())
	defer cleanup()

	cursor, err := s.groups.Find(ctx, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "team_number", Value: 1}}))
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("list_groups", "error").Inc()
		return nil, fmt.Errorf("failed to list team groups: %w", err)
	}
	defer cursor.Close(ctx)

	groups := []models.TeamGroup{}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode team groups: %w", err)
	}
	observability.DatabaseOperations.WithLabelValues("list_groups", "success").Inc()

	response := &models.TeamGroupListResponse{Groups: groups, Total: len(groups)}
	s.storeList(ctx, response)
	return response, nil
}

func checkGroupRequest(req models.TeamGroupRequest) (models.TeamGroupRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Contact = strings.TrimSpace(req.Contact)
	req.ContactEmail = models.NormalizeEmail(req.ContactEmail)
	req.ContactPhone = strings.TrimSpace(req.ContactPhone)

	group := models.TeamGroup{Name: req.Name}
	if err := group.ValidateName(); err != nil {
		return req, err
	}
	if err := utils.ValidateTeamGroupRequest(req).Err(); err != nil {
		return req, err
	}
	return req, nil
}

func (s *TeamGroupService) cachedList(ctx context.Context) (*models.TeamGroupListResponse, bool) {
	if s.cache == nil {
		return nil, false
	}

	ctx, _, cleanup := utils.TraceCacheOperation(ctx, "get", groupListCacheKey)
	defer cleanup()

	value, err := s.cache.Get(ctx, groupListCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("group cache read failed", zap.Error(err))
		}
		observability.CacheHits.WithLabelValues("list_groups_miss").Inc()
		return nil, false
	}

	var response models.TeamGroupListResponse
	if err := json.Unmarshal([]byte(value), &response); err != nil {
		return nil, false
	}
	observability.CacheHits.WithLabelValues("list_groups").Inc()
	return &response, true
}

func (s *TeamGroupService) storeList(ctx context.Context, response *models.TeamGroupListResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(response)
	if err != nil {
		return
	}

	ctx, _, cleanup := utils.TraceCacheOperation(ctx, "set", groupListCacheKey)
	defer cleanup()

	if err := s.cache.Set(ctx, groupListCacheKey, string(data), s.cacheTTL).Err(); err != nil {
		s.logger.Debug("group cache write failed", zap.Error(err))
	}
}

func (s *TeamGroupService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, groupListCacheKey).Err(); err != nil {
		s.logger.Warn("failed to invalidate group cache", zap.Error(err))
	}
}
