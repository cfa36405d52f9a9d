package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desafio-dunas/registration-api/internal/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	documentRegex = regexp.MustCompile(`^[0-9]{8}$`)
)

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool                `json:"is_valid"`
	Errors  []models.FieldError `json:"errors,omitempty"`
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid: true,
		Errors:  []models.FieldError{},
	}
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.IsValid = false
	vr.Errors = append(vr.Errors, models.FieldError{
		Field:   field,
		Message: message,
	})
}

// Err returns a *models.ValidationError when the result has errors, nil otherwise
func (vr *ValidationResult) Err() error {
	if vr.IsValid {
		return nil
	}
	return &models.ValidationError{Fields: vr.Errors}
}

// IsValidEmail checks the address format and length
func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	if !emailRegex.MatchString(email) {
		return false
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// ValidateRegistrationDraft checks a normalized draft. now bounds the vehicle year.
func ValidateRegistrationDraft(d models.RegistrationDraft, now time.Time) *ValidationResult {
	result := NewValidationResult()

	checkEnum(result, "role", d.Role, models.Roles)
	checkRequired(result, "group_name", d.GroupName)
	checkLength(result, "first_names", d.FirstNames, 2, 50)
	checkLength(result, "last_names", d.LastNames, 2, 50)

	if d.Age < 16 || d.Age > 80 {
		result.AddError("age", "must be between 16 and 80")
	}

	checkEnum(result, "experience", d.Experience, models.ExperienceLevels)
	checkEnum(result, "blood_type", d.BloodType, models.BloodTypes)

	if !documentRegex.MatchString(d.DocumentNumber) {
		result.AddError("document_number", "must have exactly 8 digits")
	}

	if !IsValidEmail(d.Email) {
		result.AddError("email", "invalid email format")
	}

	if err := ValidatePhone(d.Phone); err != nil {
		result.AddError("phone", "invalid phone number")
	}

	checkLength(result, "emergency_contact", d.EmergencyContact, 1, 100)
	if d.EmergencyPhone != "" {
		if err := ValidatePhone(d.EmergencyPhone); err != nil {
			result.AddError("emergency_phone", "invalid phone number")
		}
	}

	checkEnum(result, "vehicle_type", d.VehicleType, models.VehicleTypes)
	checkLength(result, "vehicle_brand", d.VehicleBrand, 1, 30)
	checkLength(result, "vehicle_model", d.VehicleModel, 1, 30)

	maxYear := now.Year() + 1
	if d.VehicleYear < 1990 || d.VehicleYear > maxYear {
		result.AddError("vehicle_year", fmt.Sprintf("must be between 1990 and %d", maxYear))
	}

	checkEnum(result, "arrival_day", d.ArrivalDay, models.ArrivalDays)

	if utf8.RuneCountInString(d.Notes) > 500 {
		result.AddError("notes", "must not exceed 500 characters")
	}

	return result
}

// ValidateTeamGroupRequest checks an admin group creation payload
func ValidateTeamGroupRequest(req models.TeamGroupRequest) *ValidationResult {
	result := NewValidationResult()

	group := models.TeamGroup{Name: req.Name}
	if err := group.ValidateName(); err != nil {
		result.AddError("name", err.Error())
	}
	if req.Channel < 144.0 || req.Channel > 148.0 {
		result.AddError("channel", "must be between 144.000 and 148.000 MHz")
	}
	checkLength(result, "contact", strings.TrimSpace(req.Contact), 1, 150)
	if req.ContactEmail != "" && !IsValidEmail(models.NormalizeEmail(req.ContactEmail)) {
		result.AddError("contact_email", "invalid email format")
	}
	if req.ContactPhone != "" {
		if err := ValidatePhone(req.ContactPhone); err != nil {
			result.AddError("contact_phone", "invalid phone number")
		}
	}

	return result
}

func checkRequired(result *ValidationResult, field, value string) {
	if strings.TrimSpace(value) == "" {
		result.AddError(field, "is required")
	}
}

func checkLength(result *ValidationResult, field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		result.AddError(field, "is required")
	case n < min:
		result.AddError(field, fmt.Sprintf("must have at least %d characters", min))
	case n > max:
		result.AddError(field, fmt.Sprintf("must not exceed %d characters", max))
	}
}

func checkEnum(result *ValidationResult, field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	if value == "" {
		result.AddError(field, "is required")
		return
	}
	result.AddError(field, "must be one of: "+strings.Join(allowed, ", "))
}
