package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func queryRouter(reader RegistrationReader) *gin.Engine {
	h := NewQueryHandlers(testLogger, reader)
	router := gin.New()
	router.GET("/registrations", h.ListRegistrations)
	router.GET("/registrations/stats", h.GetStats)
	router.GET("/registrations/:number", h.GetRegistration)
	router.GET("/teams/:team_number", h.GetTeam)
	return router
}

func TestListRegistrations_PassesFilters(t *testing.T) {
	reader := &fakeReader{list: &models.RegistrationListResponse{
		Registrations: []models.RegistrationRecord{},
		Pagination:    models.PaginationInfo{Page: 2, PerPage: 10},
	}}
	router := queryRouter(reader)

	w := performJSON(t, router, http.MethodGet,
		"/registrations?role=pilot&group=alp&team_number=7&search=quispe&page=2&per_page=10&arrival_day=friday", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RegistrationFilter{
		Role:       "pilot",
		Group:      "alp",
		ArrivalDay: "friday",
		TeamNumber: 7,
		Search:     "quispe",
		Page:       2,
		PerPage:    10,
	}, reader.gotFilter)
}

func TestListRegistrations_Defaults(t *testing.T) {
	reader := &fakeReader{list: &models.RegistrationListResponse{}}
	router := queryRouter(reader)

	w := performJSON(t, router, http.MethodGet, "/registrations", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reader.gotFilter.Page)
	assert.Equal(t, 50, reader.gotFilter.PerPage)
}

func TestListRegistrations_BadTeamNumber(t *testing.T) {
	router := queryRouter(&fakeReader{})

	w := performJSON(t, router, http.MethodGet, "/registrations?team_number=abc", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "team_number", resp.Fields[0].Field)
}

func TestListRegistrations_UnknownEnumValues(t *testing.T) {
	reader := &fakeReader{}
	router := queryRouter(reader)

	w := performJSON(t, router, http.MethodGet, "/registrations?status=archived&vehicle_type=tank&role=pilot", nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "status", resp.Fields[0].Field)
	assert.Equal(t, "vehicle_type", resp.Fields[1].Field)
	assert.Contains(t, resp.Fields[0].Message, "cancelled")
	assert.Equal(t, models.RegistrationFilter{}, reader.gotFilter)
}

func TestGetRegistration(t *testing.T) {
	record := &models.RegistrationRecord{RegistrationDraft: sampleDraft(), Number: 3, TeamNumber: 7, Active: true}
	router := queryRouter(&fakeReader{record: record})

	w := performJSON(t, router, http.MethodGet, "/registrations/3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.RegistrationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.Number)
	assert.Equal(t, "45678912", got.DocumentNumber)

	w = performJSON(t, router, http.MethodGet, "/registrations/4", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performJSON(t, router, http.MethodGet, "/registrations/zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSON(t, router, http.MethodGet, "/registrations/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTeam(t *testing.T) {
	team := &models.TeamResponse{TeamNumber: 7, GroupName: "Alpha", TotalMembers: 2}
	router := queryRouter(&fakeReader{team: team})

	w := performJSON(t, router, http.MethodGet, "/teams/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.TeamResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Alpha", got.GroupName)

	w = performJSON(t, router, http.MethodGet, "/teams/8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	stats := &models.RegistrationStats{Total: 5, TotalTeams: 2, ByRole: map[string]int64{"pilot": 2}}
	router := queryRouter(&fakeReader{stats: stats})

	w := performJSON(t, router, http.MethodGet, "/registrations/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.RegistrationStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, int64(2), got.ByRole["pilot"])
}

func TestGetStats_StoreFailure(t *testing.T) {
	router := queryRouter(&fakeReader{err: errors.New("aggregate failed")})

	w := performJSON(t, router, http.MethodGet, "/registrations/stats", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, KindInternal, decodeError(t, w).Kind)
}

func TestGetStats_FailureLoggedOnHandlerLogger(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := NewQueryHandlers(logging.NewSafeLogger(zap.New(core)), &fakeReader{err: errors.New("aggregate failed")})
	router := gin.New()
	router.GET("/registrations/stats", h.GetStats)

	w := performJSON(t, router, http.MethodGet, "/registrations/stats", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "registration_stats", entries[0].ContextMap()["operation"])
}
