package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pending verification states
const (
	PendingStatePending    = "pending"
	PendingStateCommitting = "committing"
)

// VerificationCodeLength is the number of digits in an issued code
const VerificationCodeLength = 6

// PendingVerification holds an issued code and the draft waiting on it. At most one exists per email.
type PendingVerification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Email     string             `bson:"email" json:"email"`
	IssueID   string             `bson:"issue_id" json:"issue_id"`
	CodeHash  string             `bson:"code_hash" json:"-"`
	Payload   RegistrationDraft  `bson:"payload" json:"payload"`
	Attempts  int                `bson:"attempts" json:"attempts"`
	State     string             `bson:"state" json:"state"`
	ClaimedAt *time.Time         `bson:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}

// IsExpired reports whether the code is past its expiry at now
func (p *PendingVerification) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// RemainingAttempts returns how many mismatches are still allowed
func (p *PendingVerification) RemainingAttempts(maxAttempts int) int {
	if r := maxAttempts - p.Attempts; r > 0 {
		return r
	}
	return 0
}

// IssueCodeRequest starts a verification for a registration draft
type IssueCodeRequest struct {
	Email   string            `json:"email" binding:"required"`
	Payload RegistrationDraft `json:"payload" binding:"required"`
}

// IssueCodeResponse acknowledges that a code was issued
type IssueCodeResponse struct {
	Accepted  bool      `json:"accepted"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// VerifyCodeRequest submits a code for an email
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyCodeResponse is returned when a registration is committed
type VerifyCodeResponse struct {
	Number       int64   `json:"number"`
	TeamNumber   int64   `json:"team_number"`
	GroupName    string  `json:"group_name"`
	Channel      float64 `json:"channel"`
	GroupContact string  `json:"group_contact"`
	Role         string  `json:"role"`
	FullName     string  `json:"full_name"`
	Status       string  `json:"status"`
	Message      string  `json:"message"`
}

// Counter is a named monotonic sequence
type Counter struct {
	ID  string `bson:"_id" json:"id"`
	Seq int64  `bson:"seq" json:"seq"`
}
