package models

import (
	"errors"
	"fmt"
	"strings"
)

// Verification and registration errors
var (
	ErrPendingNotFound        = errors.New("no pending verification for this email")
	ErrCodeExpired            = errors.New("verification code expired, request a new one")
	ErrAttemptsExhausted      = errors.New("too many failed attempts, request a new code")
	ErrVerificationInProgress = errors.New("verification already being processed, retry shortly")
	ErrUnknownGroup           = errors.New("group does not exist")
	ErrAllocationFailure      = errors.New("sequence allocation failed")
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrTeamNotFound           = errors.New("team not found")
	ErrGroupNotFound          = errors.New("group not found")
	ErrGroupNameExists        = errors.New("group name already exists")
	ErrInvalidGroupName       = errors.New("invalid group name")
	ErrGroupNameTooLong       = errors.New("group name too long (max 100 characters)")
)

// Conflict fields reported by ConflictError
const (
	ConflictFieldDocumentNumber = "document_number"
	ConflictFieldEmail          = "email"
	ConflictFieldRoleInTeam     = "role_in_team"
	ConflictFieldNumber         = "number"
)

// CodeMismatchError is returned when the submitted code does not match the issued one
type CodeMismatchError struct {
	RemainingAttempts int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.RemainingAttempts)
}

// ConflictError reports which uniqueness rule an active registration already holds
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	switch e.Field {
	case ConflictFieldDocumentNumber:
		return "document number is already registered"
	case ConflictFieldEmail:
		return "email is already registered"
	case ConflictFieldRoleInTeam:
		return "this role is already taken in the team"
	default:
		return "registration conflicts with an existing record"
	}
}

// FieldError is a single validation message for one field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one message per offending field
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
