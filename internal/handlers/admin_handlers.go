package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegistrationDeactivator soft-deletes registrations
type RegistrationDeactivator interface {
	Deactivate(ctx context.Context, number int64, now time.Time) (*models.RegistrationRecord, error)
}

// AdminHandlers serves administrative registration endpoints
type AdminHandlers struct {
	logger *logging.SafeLogger
	store  RegistrationDeactivator
}

// NewAdminHandlers creates the admin handlers
func NewAdminHandlers(logger *logging.SafeLogger, store RegistrationDeactivator) *AdminHandlers {
	return &AdminHandlers{
		logger: logger,
		store:  store,
	}
}

// DeactivateRegistration godoc
// @Summary Cancel a registration
// @Description Marks the registration cancelled and inactive, freeing its document, email and team role (admin only)
// @Tags Admin
// @Produce json
// @Security AdminKey
// @Param number path int true "Registration number"
// @Success 200 {object} models.RegistrationRecord
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/registrations/{number} [delete]
func (h *AdminHandlers) DeactivateRegistration(c *gin.Context) {
	number, ok := positiveParam(c, "number")
	if !ok {
		return
	}

	record, err := h.store.Deactivate(c.Request.Context(), number, time.Now())
	if err != nil {
		writeServiceError(c, h.logger, err, "deactivate_registration")
		return
	}

	h.logger.Info("registration cancelled by admin",
		zap.Int64("number", number),
		zap.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, record)
}
