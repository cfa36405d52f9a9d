package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// RegistrationStore persists committed registrations and serves read projections
type RegistrationStore struct {
	registrations *mongo.Collection
	logger        *logging.SafeLogger
}

// NewRegistrationStore creates a store over the registration collection
func NewRegistrationStore(registrations *mongo.Collection, logger *logging.SafeLogger) *RegistrationStore {
	return &RegistrationStore{
		registrations: registrations,
		logger:        logger,
	}
}

// Collection exposes the backing collection for counter seeding
func (s *RegistrationStore) Collection() *mongo.Collection {
	return s.registrations
}

// Persist inserts a record. Unique index violations become *models.ConflictError and
// validator rejections become *models.ValidationError.
func (s *RegistrationStore) Persist(ctx context.Context, record *models.RegistrationRecord) error {
	ctx, span, cleanup := utils.TraceDatabaseOperation(ctx, "insert", s.registrations.Name())
	defer cleanup()

	result, err := s.registrations.InsertOne(ctx, record)
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("insert_registration", "error").Inc()
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"registration.number": record.Number})

		if mongo.IsDuplicateKeyError(err) {
			return utils.ConflictFromDuplicateKey(err)
		}
		if utils.IsDocumentValidationError(err) {
			return &models.ValidationError{Fields: utils.SchemaViolations(err)}
		}
		return fmt.Errorf("failed to persist registration: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		record.ID = id
	}
	observability.DatabaseOperations.WithLabelValues("insert_registration", "success").Inc()
	return nil
}

// GetByNumber returns the active registration with the given sequence number
func (s *RegistrationStore) GetByNumber(ctx context.Context, number int64) (*models.RegistrationRecord, error) {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "find_one", s.registrations.Name())
	defer cleanup()

	var record models.RegistrationRecord
	err := utils.FindOneWithTimeout(ctx, s.registrations, bson.M{"number": number, "active": true}, &record, utils.DefaultQueryTimeout)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &record, nil
}

func buildRegistrationFilter(f models.RegistrationFilter) bson.M {
	filter := bson.M{"active": true}

	if f.Role != "" {
		filter["role"] = f.Role
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.VehicleType != "" {
		filter["vehicle_type"] = f.VehicleType
	}
	if f.ArrivalDay != "" {
		filter["arrival_day"] = f.ArrivalDay
	}
	if f.Experience != "" {
		filter["experience"] = f.Experience
	}
	if f.TeamNumber > 0 {
		filter["team_number"] = f.TeamNumber
	}
	if g := strings.TrimSpace(f.Group); g != "" {
		filter["group_name"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(g), Options: "i"}}
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		or := bson.A{}
		for _, field := range []string{"first_names", "last_names", "email", "document_number", "vehicle_brand", "vehicle_model"} {
			or = append(or, bson.M{field: bson.M{"$regex": re}})
		}
		filter["$or"] = or
	}

	return filter
}

// List returns a page of active registrations matching the filter
func (s *RegistrationStore) List(ctx context.Context, f models.RegistrationFilter) (*models.RegistrationListResponse, error) {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "find", s.registrations.Name())
	defer cleanup()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}

	filter := buildRegistrationFilter(f)

	total, err := s.registrations.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}

	findOptions := options.Find().
		SetSkip(int64((f.Page - 1) * f.PerPage)).
		SetLimit(int64(f.PerPage)).
		SetSort(bson.D{
			{Key: "team_number", Value: 1},
			{Key: "role", Value: 1},
			{Key: "registered_at", Value: -1},
		})

	cursor, err := s.registrations.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.RegistrationRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode registrations: %w", err)
	}

	totalPages := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	return &models.RegistrationListResponse{
		Registrations: records,
		Pagination: models.PaginationInfo{
			Page:       f.Page,
			PerPage:    f.PerPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// Team returns the active members of a team ordered by role
func (s *RegistrationStore) Team(ctx context.Context, teamNumber int64) (*models.TeamResponse, error) {
	cursor, err := s.registrations.Find(ctx, bson.M{"team_number": teamNumber, "active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to find team members: %w", err)
	}
	defer cursor.Close(ctx)

	var members []models.RegistrationRecord
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode team members: %w", err)
	}
	if len(members) == 0 {
		return nil, models.ErrTeamNotFound
	}

	sortByRole(members)

	first := members[0]
	return &models.TeamResponse{
		TeamNumber:   teamNumber,
		GroupName:    first.GroupName,
		Channel:      first.Channel,
		GroupContact: first.GroupContact,
		Members:      members,
		TotalMembers: len(members),
	}, nil
}

func sortByRole(members []models.RegistrationRecord) {
	// insertion sort, a team has at most five members
	for i := 1; i < len(members); i++ {
		for j := i; j > 0 && models.RoleRank(members[j].Role) < models.RoleRank(members[j-1].Role); j-- {
			members[j], members[j-1] = members[j-1], members[j]
		}
	}
}

// Stats aggregates active registrations. Each breakdown runs as its own query.
func (s *RegistrationStore) Stats(ctx context.Context, now time.Time) (*models.RegistrationStats, error) {
	ctx, _, cleanup := utils.TraceDatabaseOperation(ctx, "stats", s.registrations.Name())
	defer cleanup()

	active := bson.M{"active": true}
	stats := &models.RegistrationStats{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.registrations.CountDocuments(gctx, active)
		stats.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.registrations.CountDocuments(gctx, bson.M{
			"active":        true,
			"registered_at": bson.M{"$gte": now.AddDate(0, 0, -7)},
		})
		stats.LastSevenDays = n
		return err
	})
	g.Go(func() error {
		teams, err := s.registrations.Distinct(gctx, "team_number", active)
		stats.TotalTeams = int64(len(teams))
		return err
	})

	breakdowns := []struct {
		field  string
		target *map[string]int64
	}{
		{"role", &stats.ByRole},
		{"status", &stats.ByStatus},
		{"vehicle_type", &stats.ByVehicleType},
		{"experience", &stats.ByExperience},
		{"arrival_day", &stats.ByArrivalDay},
		{"group_name", &stats.ByGroup},
	}
	for _, b := range breakdowns {
		b := b
		g.Go(func() error {
			counts, err := s.countBy(gctx, b.field)
			*b.target = counts
			return err
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to compute registration stats", zap.Error(err))
		return nil, fmt.Errorf("failed to compute registration stats: %w", err)
	}
	return stats, nil
}

func (s *RegistrationStore) countBy(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"active": true}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := s.registrations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	return counts, nil
}

// Deactivate soft-deletes a registration, freeing its identity and role slot
func (s *RegistrationStore) Deactivate(ctx context.Context, number int64, now time.Time) (*models.RegistrationRecord, error) {
	var record models.RegistrationRecord
	err := s.registrations.FindOneAndUpdate(ctx,
		bson.M{"number": number, "active": true},
		bson.M{"$set": bson.M{
			"active":     false,
			"status":     models.RegistrationStatusCancelled,
			"updated_at": now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate registration: %w", err)
	}

	s.logger.Info("registration deactivated",
		zap.Int64("number", number),
		zap.Int64("team_number", record.TeamNumber),
		zap.String("role", record.Role))
	return &record, nil
}
