package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() models.RegistrationDraft {
	return models.RegistrationDraft{
		Role:             models.RolePilot,
		GroupName:        "Alpha",
		FirstNames:       "Ana",
		LastNames:        "Torres",
		Age:              30,
		Experience:       "expert",
		BloodType:        "O+",
		DocumentNumber:   "12345678",
		Email:            "ana@example.com",
		Phone:            "987654321",
		EmergencyContact: "Luis Torres",
		VehicleType:      "utv",
		VehicleBrand:     "Polaris",
		VehicleModel:     "RZR",
		VehicleYear:      2022,
		ArrivalDay:       "friday",
	}
}

func fieldsOf(result *ValidationResult) []string {
	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidationResult_AddError(t *testing.T) {
	result := NewValidationResult()
	require.NoError(t, result.Err())

	result.AddError("test_field", "test message")

	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "test_field", result.Errors[0].Field)

	var verr *models.ValidationError
	require.True(t, errors.As(result.Err(), &verr))
	assert.Equal(t, "test message", verr.Fields[0].Message)
}

func TestValidateRegistrationDraft_Valid(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	result := ValidateRegistrationDraft(validDraft(), now)

	assert.True(t, result.IsValid, "unexpected errors: %+v", result.Errors)
}

func TestValidateRegistrationDraft_Invalid(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		modify func(d *models.RegistrationDraft)
		field  string
	}{
		{"unknown role", func(d *models.RegistrationDraft) { d.Role = "mechanic" }, "role"},
		{"missing group", func(d *models.RegistrationDraft) { d.GroupName = "" }, "group_name"},
		{"short first names", func(d *models.RegistrationDraft) { d.FirstNames = "A" }, "first_names"},
		{"long last names", func(d *models.RegistrationDraft) { d.LastNames = strings.Repeat("x", 51) }, "last_names"},
		{"too young", func(d *models.RegistrationDraft) { d.Age = 15 }, "age"},
		{"too old", func(d *models.RegistrationDraft) { d.Age = 81 }, "age"},
		{"bad experience", func(d *models.RegistrationDraft) { d.Experience = "pro" }, "experience"},
		{"bad blood type", func(d *models.RegistrationDraft) { d.BloodType = "C+" }, "blood_type"},
		{"document with 7 digits", func(d *models.RegistrationDraft) { d.DocumentNumber = "1234567" }, "document_number"},
		{"document with letters", func(d *models.RegistrationDraft) { d.DocumentNumber = "1234567A" }, "document_number"},
		{"bad email", func(d *models.RegistrationDraft) { d.Email = "ana@" }, "email"},
		{"bad phone", func(d *models.RegistrationDraft) { d.Phone = "123" }, "phone"},
		{"bad emergency phone", func(d *models.RegistrationDraft) { d.EmergencyPhone = "abc" }, "emergency_phone"},
		{"long emergency contact", func(d *models.RegistrationDraft) { d.EmergencyContact = strings.Repeat("x", 101) }, "emergency_contact"},
		{"bad vehicle", func(d *models.RegistrationDraft) { d.VehicleType = "tank" }, "vehicle_type"},
		{"long brand", func(d *models.RegistrationDraft) { d.VehicleBrand = strings.Repeat("x", 31) }, "vehicle_brand"},
		{"old vehicle", func(d *models.RegistrationDraft) { d.VehicleYear = 1989 }, "vehicle_year"},
		{"future vehicle", func(d *models.RegistrationDraft) { d.VehicleYear = 2028 }, "vehicle_year"},
		{"bad arrival", func(d *models.RegistrationDraft) { d.ArrivalDay = "monday" }, "arrival_day"},
		{"long notes", func(d *models.RegistrationDraft) { d.Notes = strings.Repeat("x", 501) }, "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.modify(&d)

			result := ValidateRegistrationDraft(d, now)

			assert.False(t, result.IsValid)
			assert.Equal(t, []string{tt.field}, fieldsOf(result))
		})
	}
}

func TestValidateRegistrationDraft_NextYearVehicleAllowed(t *testing.T) {
	d := validDraft()
	d.VehicleYear = 2027

	result := ValidateRegistrationDraft(d, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, result.IsValid)
}

func TestValidateRegistrationDraft_CollectsAllFields(t *testing.T) {
	result := ValidateRegistrationDraft(models.RegistrationDraft{}, time.Now())

	fields := fieldsOf(result)
	assert.Contains(t, fields, "role")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "document_number")
	assert.NotContains(t, fields, "notes")
	assert.NotContains(t, fields, "emergency_phone")
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("ana.torres+rally@example.com.pe"))
	assert.False(t, IsValidEmail(""))
	assert.False(t, IsValidEmail("no-at-sign.com"))
	assert.False(t, IsValidEmail("ana@.example.com"))
	assert.False(t, IsValidEmail(strings.Repeat("a", 250)+"@x.com"))
}

func TestValidateTeamGroupRequest(t *testing.T) {
	valid := models.TeamGroupRequest{Name: "Alpha", Channel: 146.52, Contact: "Luis"}
	assert.True(t, ValidateTeamGroupRequest(valid).IsValid)

	bad := models.TeamGroupRequest{Name: " ", Channel: 150, Contact: "", ContactEmail: "x"}
	result := ValidateTeamGroupRequest(bad)
	assert.ElementsMatch(t, []string{"name", "channel", "contact", "contact_email"}, fieldsOf(result))
}
