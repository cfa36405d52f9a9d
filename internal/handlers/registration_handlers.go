package handlers

import (
	"context"
	"net/http"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
)

// CodeIssuer starts an email verification for a registration draft
type CodeIssuer interface {
	Issue(ctx context.Context, email string, draft models.RegistrationDraft) (*models.IssueCodeResponse, error)
}

// CodeVerifier checks a code and commits the registration
type CodeVerifier interface {
	Verify(ctx context.Context, email, code string) (*models.RegistrationRecord, error)
}

// RegistrationHandlers serves the verification flow
type RegistrationHandlers struct {
	logger   *logging.SafeLogger
	issuer   CodeIssuer
	verifier CodeVerifier
}

// NewRegistrationHandlers creates the verification flow handlers
func NewRegistrationHandlers(logger *logging.SafeLogger, issuer CodeIssuer, verifier CodeVerifier) *RegistrationHandlers {
	return &RegistrationHandlers{
		logger:   logger,
		issuer:   issuer,
		verifier: verifier,
	}
}

// IssueCode godoc
// @Summary Request a verification code
// @Description Validates the registration draft and emails a 6-digit code to the given address. Any earlier code for the same address stops working.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param request body models.IssueCodeRequest true "Email and registration draft"
// @Success 202 {object} models.IssueCodeResponse
// @Failure 400 {object} ErrorResponse "Invalid draft"
// @Failure 429 {object} ErrorResponse "Too many requests"
// @Failure 500 {object} ErrorResponse
// @Router /registrations/verification-code [post]
func (h *RegistrationHandlers) IssueCode(c *gin.Context) {
	var req models.IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingError(err))
		return
	}

	resp, err := h.issuer.Issue(c.Request.Context(), req.Email, req.Payload)
	if err != nil {
		writeServiceError(c, h.logger, err, "issue_code")
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// VerifyCode godoc
// @Summary Verify a code and complete the registration
// @Description Checks the code sent by email. On success the registration is committed with its sequence number and team.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param request body models.VerifyCodeRequest true "Email and code"
// @Success 201 {object} models.VerifyCodeResponse
// @Failure 400 {object} ErrorResponse "Wrong code, remaining_attempts tells how many tries are left"
// @Failure 404 {object} ErrorResponse "No pending verification"
// @Failure 409 {object} ErrorResponse "Identity or role already registered"
// @Failure 410 {object} ErrorResponse "Code expired"
// @Failure 422 {object} ErrorResponse "Unknown group"
// @Failure 429 {object} ErrorResponse "Attempts exhausted"
// @Failure 503 {object} ErrorResponse "Temporarily unavailable"
// @Router /registrations/verify [post]
func (h *RegistrationHandlers) VerifyCode(c *gin.Context) {
	var req models.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindingError(err))
		return
	}

	record, err := h.verifier.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(c, h.logger, err, "verify_code")
		return
	}

	c.JSON(http.StatusCreated, models.VerifyCodeResponse{
		Number:       record.Number,
		TeamNumber:   record.TeamNumber,
		GroupName:    record.GroupName,
		Channel:      record.Channel,
		GroupContact: record.GroupContact,
		Role:         record.Role,
		FullName:     record.FullName(),
		Status:       record.Status,
		Message:      "registration completed",
	})
}
