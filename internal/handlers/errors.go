package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Error kinds reported in ErrorResponse.Kind
const (
	KindNotFound          = "not_found"
	KindExpired           = "expired"
	KindAttemptsExhausted = "attempts_exhausted"
	KindCodeMismatch      = "code_mismatch"
	KindUnknownGroup      = "unknown_group"
	KindConflict          = "conflict"
	KindValidation        = "validation"
	KindAllocationFailure = "allocation_failure"
	KindInProgress        = "in_progress"
	KindRateLimited       = "rate_limited"
	KindUnauthorized      = "unauthorized"
	KindForbidden         = "forbidden"
	KindInternal          = "internal"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error             string              `json:"error"`
	Kind              string              `json:"kind,omitempty"`
	Field             string              `json:"field,omitempty"`
	Fields            []models.FieldError `json:"fields,omitempty"`
	RemainingAttempts *int                `json:"remaining_attempts,omitempty"`
}

func init() {
	// report binding errors with the JSON field names clients send
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindingError converts a ShouldBindJSON failure into a validation response
func bindingError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]models.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg := "is invalid"
			if fe.Tag() == "required" {
				msg = "is required"
			}
			fields = append(fields, models.FieldError{Field: fe.Field(), Message: msg})
		}
		return ErrorResponse{Error: "invalid request body", Kind: KindValidation, Fields: fields}
	}
	return ErrorResponse{Error: "invalid request body: malformed JSON", Kind: KindValidation}
}

// writeServiceError maps a service error to its HTTP status and body.
// Unexpected errors are logged on logger and hidden behind a generic message.
func writeServiceError(c *gin.Context, logger *logging.SafeLogger, err error, operation string) {
	var (
		mismatch   *models.CodeMismatchError
		conflict   *models.ConflictError
		validation *models.ValidationError
	)

	switch {
	case errors.As(err, &mismatch):
		remaining := mismatch.RemainingAttempts
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindCodeMismatch, RemainingAttempts: &remaining})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: KindConflict, Field: conflict.Field})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Kind: KindValidation, Fields: validation.Fields})
	case errors.Is(err, models.ErrPendingNotFound),
		errors.Is(err, models.ErrRegistrationNotFound),
		errors.Is(err, models.ErrTeamNotFound),
		errors.Is(err, models.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: KindNotFound})
	case errors.Is(err, models.ErrCodeExpired):
		c.JSON(http.StatusGone, ErrorResponse{Error: err.Error(), Kind: KindExpired})
	case errors.Is(err, models.ErrAttemptsExhausted):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error(), Kind: KindAttemptsExhausted})
	case errors.Is(err, models.ErrUnknownGroup):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Kind: KindUnknownGroup, Field: "group_name"})
	case errors.Is(err, models.ErrVerificationInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: KindInProgress})
	case errors.Is(err, models.ErrGroupNameExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: KindConflict, Field: "name"})
	case errors.Is(err, models.ErrInvalidGroupName), errors.Is(err, models.ErrGroupNameTooLong):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:  err.Error(),
			Kind:   KindValidation,
			Fields: []models.FieldError{{Field: "name", Message: err.Error()}},
		})
	case errors.Is(err, models.ErrAllocationFailure):
		logger.Error("sequence allocation failed",
			zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "registration temporarily unavailable, retry",
			Kind:  KindAllocationFailure,
		})
	default:
		logger.Error("request failed",
			zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Kind: KindInternal})
	}
}
