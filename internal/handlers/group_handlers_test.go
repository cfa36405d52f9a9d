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

func groupRouter(groups GroupService) *gin.Engine {
	h := NewGroupHandlers(testLogger, groups)
	router := gin.New()
	router.GET("/groups", h.ListGroups)
	router.GET("/groups/:team_number", h.GetGroup)
	router.POST("/admin/groups", h.CreateGroup)
	router.PUT("/admin/groups/:team_number", h.UpdateGroup)
	router.DELETE("/admin/groups/:team_number", h.DeactivateGroup)
	return router
}

func TestCreateGroup_ThenList(t *testing.T) {
	router := groupRouter(&fakeGroups{})

	w := performJSON(t, router, http.MethodPost, "/admin/groups", models.TeamGroupRequest{
		Name:    "Alpha",
		Channel: 146.52,
		Contact: "Base Alpha",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.TeamGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.TeamNumber)

	w = performJSON(t, router, http.MethodGet, "/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.TeamGroupListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Alpha", list.Groups[0].Name)
}

func TestCreateGroup_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate name", models.ErrGroupNameExists, http.StatusConflict},
		{"blank name", models.ErrInvalidGroupName, http.StatusBadRequest},
		{"long name", models.ErrGroupNameTooLong, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := groupRouter(&fakeGroups{err: tt.err})
			w := performJSON(t, router, http.MethodPost, "/admin/groups", models.TeamGroupRequest{
				Name:    "Alpha",
				Channel: 146.52,
				Contact: "Base Alpha",
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "name", firstField(decodeError(t, w)))
		})
	}
}

func TestCreateGroup_MissingChannel(t *testing.T) {
	router := groupRouter(&fakeGroups{})

	w := performJSON(t, router, http.MethodPost, "/admin/groups", `{"name":"Alpha","contact":"Base"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "channel", firstField(decodeError(t, w)))
}

func TestGetGroup(t *testing.T) {
	router := groupRouter(&fakeGroups{groups: []models.TeamGroup{
		{Name: "Alpha", Channel: 145.5, Contact: "Luis", TeamNumber: 7, Active: true},
	}})

	w := performJSON(t, router, http.MethodGet, "/groups/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.TeamGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Alpha", got.Name)

	w = performJSON(t, router, http.MethodGet, "/groups/8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, KindNotFound, decodeError(t, w).Kind)

	w = performJSON(t, router, http.MethodGet, "/groups/seven", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateGroup(t *testing.T) {
	groups := &fakeGroups{groups: []models.TeamGroup{
		{Name: "Alpha", Channel: 145.5, Contact: "Luis", TeamNumber: 7, Active: true},
	}}
	router := groupRouter(groups)

	w := performJSON(t, router, http.MethodPut, "/admin/groups/7", models.TeamGroupRequest{
		Name:    "Alpha",
		Channel: 147.25,
		Contact: "Marta",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var got models.TeamGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 147.25, got.Channel)
	assert.Equal(t, int64(7), got.TeamNumber)

	w = performJSON(t, router, http.MethodPut, "/admin/groups/7", `{"name":"Alpha","contact":"Marta"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "channel", firstField(decodeError(t, w)))

	w = performJSON(t, router, http.MethodPut, "/admin/groups/9", models.TeamGroupRequest{
		Name:    "Alpha",
		Channel: 147.25,
		Contact: "Marta",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateGroup_NameTaken(t *testing.T) {
	router := groupRouter(&fakeGroups{err: models.ErrGroupNameExists})

	w := performJSON(t, router, http.MethodPut, "/admin/groups/7", models.TeamGroupRequest{
		Name:    "Bravo",
		Channel: 146.52,
		Contact: "Base",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "name", firstField(decodeError(t, w)))
}

func TestDeactivateGroup(t *testing.T) {
	groups := &fakeGroups{groups: []models.TeamGroup{
		{Name: "Alpha", Channel: 145.5, Contact: "Luis", TeamNumber: 7, Active: true},
	}}
	router := groupRouter(groups)

	w := performJSON(t, router, http.MethodDelete, "/admin/groups/7", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, groups.groups[0].Active)

	w = performJSON(t, router, http.MethodGet, "/groups/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performJSON(t, router, http.MethodDelete, "/admin/groups/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func firstField(resp ErrorResponse) string {
	if resp.Field != "" {
		return resp.Field
	}
	if len(resp.Fields) > 0 {
		return resp.Fields[0].Field
	}
	return ""
}
