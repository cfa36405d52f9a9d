package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeactivateRegistration(t *testing.T) {
	store := &fakeReader{record: &models.RegistrationRecord{
		RegistrationDraft: sampleDraft(),
		Number:            9,
		Status:            models.RegistrationStatusConfirmed,
		Active:            true,
	}}
	h := NewAdminHandlers(testLogger, store)
	router := gin.New()
	router.DELETE("/admin/registrations/:number", h.DeactivateRegistration)

	w := performJSON(t, router, http.MethodDelete, "/admin/registrations/9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.RegistrationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.Active)
	assert.Equal(t, models.RegistrationStatusCancelled, got.Status)

	// already cancelled
	w = performJSON(t, router, http.MethodDelete, "/admin/registrations/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performJSON(t, router, http.MethodDelete, "/admin/registrations/-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
