package handlers

import (
	"context"
	"net/http"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GroupService manages team groups
type GroupService interface {
	CreateGroup(ctx context.Context, req models.TeamGroupRequest) (*models.TeamGroup, error)
	ListGroups(ctx context.Context) (*models.TeamGroupListResponse, error)
	GetGroup(ctx context.Context, teamNumber int64) (*models.TeamGroup, error)
	UpdateGroup(ctx context.Context, teamNumber int64, req models.TeamGroupRequest) (*models.TeamGroup, error)
	DeactivateGroup(ctx context.Context, teamNumber int64) error
}

// GroupHandlers serves team group endpoints
type GroupHandlers struct {
	logger *logging.SafeLogger
	groups GroupService
}

// NewGroupHandlers creates the group handlers
func NewGroupHandlers(logger *logging.SafeLogger, groups GroupService) *GroupHandlers {
	return &GroupHandlers{
		logger: logger,
		groups: groups,
	}
}

// ListGroups godoc
// @Summary List groups
// @Description Lists the active groups a registration can join, with their radio channel and contact
// @Tags Groups
// @Produce json
// @Success 200 {object} models.TeamGroupListResponse
// @Failure 500 {object} ErrorResponse
// @Router /groups [get]
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	resp, err := h.groups.ListGroups(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, err, "list_groups")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateGroup godoc
// @Summary Create a group
// @Description Creates a group and assigns it the next team number (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param group body models.TeamGroupRequest true "Group data"
// @Success 201 {object} models.TeamGroup
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Name already taken"
// @Router /admin/groups [post]
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	var req models.TeamGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingError(err))
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, h.logger, err, "create_group")
		return
	}
	c.JSON(http.StatusCreated, group)
}

// GetGroup godoc
// @Summary Get a group
// @Description Returns an active group by its team number
// @Tags Groups
// @Produce json
// @Param team_number path int true "Team number"
// @Success 200 {object} models.TeamGroup
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /groups/{team_number} [get]
func (h *GroupHandlers) GetGroup(c *gin.Context) {
	teamNumber, ok := positiveParam(c, "team_number")
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), teamNumber)
	if err != nil {
		writeServiceError(c, h.logger, err, "get_group")
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup godoc
// @Summary Update a group
// @Description Replaces a group's name, channel and contact. Existing registrations keep the values they were committed with (admin only)
// @Tags Admin
// @Accept json
// @Produce json
// @Security AdminKey
// @Param team_number path int true "Team number"
// @Param group body models.TeamGroupRequest true "Group data"
// @Success 200 {object} models.TeamGroup
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Name already taken"
// @Router /admin/groups/{team_number} [put]
func (h *GroupHandlers) UpdateGroup(c *gin.Context) {
	teamNumber, ok := positiveParam(c, "team_number")
	if !ok {
		return
	}

	var req models.TeamGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingError(err))
		return
	}

	group, err := h.groups.UpdateGroup(c.Request.Context(), teamNumber, req)
	if err != nil {
		writeServiceError(c, h.logger, err, "update_group")
		return
	}
	c.JSON(http.StatusOK, group)
}

// DeactivateGroup godoc
// @Summary Deactivate a group
// @Description Retires a group so it no longer accepts registrations. The group and its team number are kept (admin only)
// @Tags Admin
// @Security AdminKey
// @Param team_number path int true "Team number"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/groups/{team_number} [delete]
func (h *GroupHandlers) DeactivateGroup(c *gin.Context) {
	teamNumber, ok := positiveParam(c, "team_number")
	if !ok {
		return
	}

	if err := h.groups.DeactivateGroup(c.Request.Context(), teamNumber); err != nil {
		writeServiceError(c, h.logger, err, "deactivate_group")
		return
	}

	h.logger.Info("team group deactivated by admin",
		zap.Int64("team_number", teamNumber),
		zap.String("ip", c.ClientIP()))
	c.Status(http.StatusNoContent)
}
