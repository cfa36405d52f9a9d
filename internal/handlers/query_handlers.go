package handlers

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RegistrationReader serves read projections over committed registrations
type RegistrationReader interface {
	List(ctx context.Context, f models.RegistrationFilter) (*models.RegistrationListResponse, error)
	GetByNumber(ctx context.Context, number int64) (*models.RegistrationRecord, error)
	Team(ctx context.Context, teamNumber int64) (*models.TeamResponse, error)
	Stats(ctx context.Context, now time.Time) (*models.RegistrationStats, error)
}

// QueryHandlers serves registration listings and lookups
type QueryHandlers struct {
	logger *logging.SafeLogger
	reader RegistrationReader
}

// NewQueryHandlers creates the read handlers
func NewQueryHandlers(logger *logging.SafeLogger, reader RegistrationReader) *QueryHandlers {
	return &QueryHandlers{
		logger: logger,
		reader: reader,
	}
}

// ListRegistrations godoc
// @Summary List registrations
// @Description Lists active registrations ordered by team, role and registration time
// @Tags Registrations
// @Produce json
// @Param role query string false "Role"
// @Param status query string false "Status"
// @Param group query string false "Group name (substring, case-insensitive)"
// @Param vehicle_type query string false "Vehicle type"
// @Param arrival_day query string false "Arrival day"
// @Param experience query string false "Experience level"
// @Param team_number query int false "Team number"
// @Param search query string false "Free text over names, email, document, brand and model"
// @Param page query int false "Page (default 1)"
// @Param per_page query int false "Items per page (default 50, max 200)"
// @Success 200 {object} models.RegistrationListResponse
// @Failure 400 {object} ErrorResponse
// @Router /registrations [get]
func (h *QueryHandlers) ListRegistrations(c *gin.Context) {
	filter := models.RegistrationFilter{
		Role:        c.Query("role"),
		Status:      c.Query("status"),
		Group:       c.Query("group"),
		VehicleType: c.Query("vehicle_type"),
		ArrivalDay:  c.Query("arrival_day"),
		Experience:  c.Query("experience"),
		Search:      c.Query("search"),
	}

	var fields []models.FieldError
	for _, e := range []struct {
		field, value string
		allowed      []string
	}{
		{"role", filter.Role, models.Roles},
		{"status", filter.Status, models.Statuses},
		{"vehicle_type", filter.VehicleType, models.VehicleTypes},
		{"arrival_day", filter.ArrivalDay, models.ArrivalDays},
		{"experience", filter.Experience, models.ExperienceLevels},
	} {
		if e.value != "" && !slices.Contains(e.allowed, e.value) {
			fields = append(fields, models.FieldError{Field: e.field, Message: "must be one of: " + strings.Join(e.allowed, ", ")})
		}
	}
	if v := c.Query("team_number"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			fields = append(fields, models.FieldError{Field: "team_number", Message: "must be a positive integer"})
		}
		filter.TeamNumber = n
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))

	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query", Kind: KindValidation, Fields: fields})
		return
	}

	resp, err := h.reader.List(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, h.logger, err, "list_registrations")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRegistration godoc
// @Summary Get a registration
// @Description Returns the active registration with the given sequence number
// @Tags Registrations
// @Produce json
// @Param number path int true "Registration number"
// @Success 200 {object} models.RegistrationRecord
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{number} [get]
func (h *QueryHandlers) GetRegistration(c *gin.Context) {
	number, ok := positiveParam(c, "number")
	if !ok {
		return
	}

	record, err := h.reader.GetByNumber(c.Request.Context(), number)
	if err != nil {
		writeServiceError(c, h.logger, err, "get_registration")
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetTeam godoc
// @Summary Get a team
// @Description Returns the active members of a team ordered by role
// @Tags Teams
// @Produce json
// @Param team_number path int true "Team number"
// @Success 200 {object} models.TeamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /teams/{team_number} [get]
func (h *QueryHandlers) GetTeam(c *gin.Context) {
	teamNumber, ok := positiveParam(c, "team_number")
	if !ok {
		return
	}

	team, err := h.reader.Team(c.Request.Context(), teamNumber)
	if err != nil {
		writeServiceError(c, h.logger, err, "get_team")
		return
	}
	c.JSON(http.StatusOK, team)
}

// GetStats godoc
// @Summary Registration statistics
// @Description Totals and breakdowns over active registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} models.RegistrationStats
// @Failure 500 {object} ErrorResponse
// @Router /registrations/stats [get]
func (h *QueryHandlers) GetStats(c *gin.Context) {
	stats, err := h.reader.Stats(c.Request.Context(), time.Now())
	if err != nil {
		writeServiceError(c, h.logger, err, "registration_stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// positiveParam parses a path parameter as a positive integer, writing a 400 otherwise
func positiveParam(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  name + " must be a positive integer",
			Kind:   KindValidation,
			Fields: []models.FieldError{{Field: name, Message: "must be a positive integer"}},
		})
		return 0, false
	}
	return n, true
}
