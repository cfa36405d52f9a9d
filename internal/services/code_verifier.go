package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/utils"
	"go.uber.org/zap"
)

// IdentityGuard checks uniqueness rules against active registrations
type IdentityGuard interface {
	CheckIdentity(ctx context.Context, draft models.RegistrationDraft) error
	CheckTeamSlot(ctx context.Context, teamNumber int64, role string) error
}

// GroupResolver maps a group name to its team
type GroupResolver interface {
	Resolve(ctx context.Context, name string) (*models.TeamAssignment, error)
}

// NumberAllocator hands out sequence numbers per counter key
type NumberAllocator interface {
	Next(ctx context.Context, key string) (int64, error)
}

// RecordWriter persists committed registrations
type RecordWriter interface {
	Persist(ctx context.Context, record *models.RegistrationRecord) error
}

// settleTimeout bounds the release or delete that follows a commit attempt. Those
// run detached from the request so a client hanging up does not leave the code claimed.
const settleTimeout = 5 * time.Second

// VerifierConfig holds the knobs of code verification
type VerifierConfig struct {
	EventName   string
	MaxAttempts int
	CommitLease time.Duration
}

// CodeVerifier checks a submitted code and commits the pending draft as a registration
type CodeVerifier struct {
	pending       PendingRepository
	guard         IdentityGuard
	resolver      GroupResolver
	allocator     NumberAllocator
	store         RecordWriter
	notifications NotificationSink
	cfg           VerifierConfig
	logger        *logging.SafeLogger

	now func() time.Time
}

// NewCodeVerifier creates a verifier
func NewCodeVerifier(
	pending PendingRepository,
	guard IdentityGuard,
	resolver GroupResolver,
	allocator NumberAllocator,
	store RecordWriter,
	notifications NotificationSink,
	cfg VerifierConfig,
	logger *logging.SafeLogger,
) *CodeVerifier {
	return &CodeVerifier{
		pending:       pending,
		guard:         guard,
		resolver:      resolver,
		allocator:     allocator,
		store:         store,
		notifications: notifications,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// Verify checks code for email. On success the registration is committed exactly once,
// the pending entry is removed and a confirmation email is enqueued. Mismatches consume
// an attempt; commit failures leave the pending entry and its attempt count untouched.
func (v *CodeVerifier) Verify(ctx context.Context, email, code string) (*models.RegistrationRecord, error) {
	ctx, span, cleanup := utils.TraceBusinessLogic(ctx, "verify_code")
	defer cleanup()

	record, err := v.verify(ctx, models.NormalizeEmail(email), code)
	observability.VerificationAttempts.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"verification.outcome": outcomeLabel(err)})
	}
	return record, err
}

func (v *CodeVerifier) verify(ctx context.Context, email, code string) (*models.RegistrationRecord, error) {
	logger := v.logger.With(zap.String("email", observability.MaskEmail(email)))

	pending, err := v.pending.Find(ctx, email)
	if err != nil {
		return nil, err
	}

	now := v.now()
	if pending.IsExpired(now) {
		if err := v.pending.Delete(ctx, email, pending.IssueID); err != nil {
			logger.Warn("failed to delete expired verification", zap.Error(err))
		}
		return nil, models.ErrCodeExpired
	}

	if pending.Attempts >= v.cfg.MaxAttempts {
		if err := v.pending.Delete(ctx, email, pending.IssueID); err != nil {
			logger.Warn("failed to delete exhausted verification", zap.Error(err))
		}
		return nil, models.ErrAttemptsExhausted
	}

	if !utils.CompareVerificationCode(pending.CodeHash, code) {
		attempts, err := v.pending.RecordMismatch(ctx, email, pending.IssueID, v.cfg.MaxAttempts)
		if err != nil {
			return nil, err
		}
		remaining := v.cfg.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		logger.Info("verification code mismatch", zap.Int("remaining_attempts", remaining))
		return nil, &models.CodeMismatchError{RemainingAttempts: remaining}
	}

	claimed, err := v.pending.Claim(ctx, email, pending.IssueID, now, v.cfg.CommitLease)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, models.ErrVerificationInProgress
	}

	record, err := v.commit(ctx, pending.Payload, now)
	if err != nil {
		logger.Info("registration commit rejected",
			zap.String("document", observability.MaskDocument(pending.Payload.DocumentNumber)),
			zap.String("outcome", outcomeLabel(err)),
			zap.Error(err))
		if releaseErr := v.settle(ctx, func(sctx context.Context) error {
			return v.pending.Release(sctx, email, pending.IssueID)
		}); releaseErr != nil {
			logger.Error("failed to release verification after commit failure",
				zap.Error(releaseErr))
		}
		return nil, err
	}

	if err := v.settle(ctx, func(sctx context.Context) error {
		return v.pending.Delete(sctx, email, pending.IssueID)
	}); err != nil {
		logger.Error("registration committed but pending verification not removed",
			zap.Int64("number", record.Number),
			zap.Error(err))
	}

	observability.RegistrationsCommitted.WithLabelValues(record.Role).Inc()
	logger.Info("registration committed",
		zap.Int64("number", record.Number),
		zap.Int64("team_number", record.TeamNumber),
		zap.String("role", record.Role))

	if err := v.notifications.Enqueue(ConfirmationNotification(v.cfg.EventName, record)); err != nil {
		logger.Warn("failed to enqueue confirmation email", zap.Error(err))
	}

	return record, nil
}

// settle runs fn on a context that keeps ctx's values but not its cancellation
func (v *CodeVerifier) settle(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	return fn(sctx)
}

// commit runs the registration pipeline. Uniqueness is checked before a sequence
// number is allocated so rejected drafts do not burn numbers.
func (v *CodeVerifier) commit(ctx context.Context, draft models.RegistrationDraft, now time.Time) (*models.RegistrationRecord, error) {
	if err := v.guard.CheckIdentity(ctx, draft); err != nil {
		return nil, err
	}

	team, err := v.resolver.Resolve(ctx, draft.GroupName)
	if err != nil {
		return nil, err
	}

	if err := v.guard.CheckTeamSlot(ctx, team.TeamNumber, draft.Role); err != nil {
		return nil, err
	}

	number, err := v.allocator.Next(ctx, models.RegistrationNumberCounter)
	if err != nil {
		if !errors.Is(err, models.ErrAllocationFailure) {
			err = fmt.Errorf("%w: %v", models.ErrAllocationFailure, err)
		}
		return nil, err
	}

	record := models.NewRegistrationRecord(draft, *team, number, now)
	if err := v.store.Persist(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func outcomeLabel(err error) string {
	var mismatch *models.CodeMismatchError
	var conflict *models.ConflictError
	var validation *models.ValidationError

	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, models.ErrPendingNotFound):
		return "not_found"
	case errors.Is(err, models.ErrCodeExpired):
		return "expired"
	case errors.Is(err, models.ErrAttemptsExhausted):
		return "attempts_exhausted"
	case errors.As(err, &mismatch):
		return "code_mismatch"
	case errors.Is(err, models.ErrUnknownGroup):
		return "unknown_group"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &validation):
		return "validation"
	case errors.Is(err, models.ErrAllocationFailure):
		return "allocation_failure"
	case errors.Is(err, models.ErrVerificationInProgress):
		return "in_progress"
	default:
		return "error"
	}
}
