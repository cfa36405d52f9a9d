package services

import (
	"context"
	"fmt"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.uber.org/zap"
)

// PendingRepository stores pending verifications
type PendingRepository interface {
	Replace(ctx context.Context, p *models.PendingVerification) error
	Find(ctx context.Context, email string) (*models.PendingVerification, error)
	RecordMismatch(ctx context.Context, email, issueID string, maxAttempts int) (int, error)
	Claim(ctx context.Context, email, issueID string, now time.Time, lease time.Duration) (bool, error)
	Release(ctx context.Context, email, issueID string) error
	Delete(ctx context.Context, email, issueID string) error
}

// NotificationSink accepts notifications for asynchronous delivery
type NotificationSink interface {
	Enqueue(n Notification) error
}

// IssuerConfig holds the knobs of code issuance
type IssuerConfig struct {
	EventName string
	CodeTTL   time.Duration
	HashCost  int
}

// CodeIssuer validates a draft, stores it with a fresh code and sends the code by email
type CodeIssuer struct {
	pending       PendingRepository
	notifications NotificationSink
	cfg           IssuerConfig
	logger        *logging.SafeLogger

	now          func() time.Time
	generateCode func() (string, error)
	newIssueID   func() string
}

// NewCodeIssuer creates an issuer
func NewCodeIssuer(pending PendingRepository, notifications NotificationSink, cfg IssuerConfig, logger *logging.SafeLogger) *CodeIssuer {
	return &CodeIssuer{
		pending:       pending,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		generateCode:  utils.GenerateVerificationCode,
		newIssueID:    utils.GenerateUUID,
	}
}

// Issue replaces any pending verification for email with a new one and enqueues the code email.
// Delivery happens in the background; a failed send is logged and never returned.
func (i *CodeIssuer) Issue(ctx context.Context, email string, draft models.RegistrationDraft) (*models.IssueCodeResponse, error) {
	ctx, span, cleanup := utils.TraceBusinessLogic(ctx, "issue_code")
	defer cleanup()

	email = models.NormalizeEmail(email)
	draft.Normalize()

	if draft.Email == "" {
		draft.Email = email
	}
	if draft.Email != email {
		observability.VerificationCodesIssued.WithLabelValues("invalid").Inc()
		return nil, &models.ValidationError{Fields: []models.FieldError{
			{Field: "email", Message: "must match the address being verified"},
		}}
	}

	now := i.now()
	if err := utils.ValidateRegistrationDraft(draft, now).Err(); err != nil {
		observability.VerificationCodesIssued.WithLabelValues("invalid").Inc()
		return nil, err
	}

	code, err := i.generateCode()
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashVerificationCode(code, i.cfg.HashCost)
	if err != nil {
		return nil, err
	}

	pending := &models.PendingVerification{
		Email:     email,
		IssueID:   i.newIssueID(),
		CodeHash:  hash,
		Payload:   draft,
		Attempts:  0,
		State:     models.PendingStatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(i.cfg.CodeTTL),
	}

	if err := i.pending.Replace(ctx, pending); err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		observability.VerificationCodesIssued.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to issue verification code: %w", err)
	}

	n := VerificationCodeNotification(i.cfg.EventName, email, code, pending.ExpiresAt, i.cfg.CodeTTL)
	if err := i.notifications.Enqueue(n); err != nil {
		i.logger.Warn("failed to enqueue verification code email",
			zap.String("email", observability.MaskEmail(email)),
			zap.Error(err))
	}

	observability.VerificationCodesIssued.WithLabelValues("success").Inc()
	i.logger.Info("verification code issued",
		zap.String("email", observability.MaskEmail(email)),
		zap.String("issue_id", pending.IssueID),
		zap.String("role", draft.Role),
		zap.Time("expires_at", pending.ExpiresAt))

	return &models.IssueCodeResponse{
		Accepted:  true,
		Email:     email,
		ExpiresAt: pending.ExpiresAt,
		Message:   "verification code sent",
	}, nil
}
