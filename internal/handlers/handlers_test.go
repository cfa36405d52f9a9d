package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testLogger = logging.NewSafeLogger(nil)

type fakeIssuer struct {
	gotEmail string
	gotDraft models.RegistrationDraft
	resp     *models.IssueCodeResponse
	err      error
}

func (f *fakeIssuer) Issue(_ context.Context, email string, draft models.RegistrationDraft) (*models.IssueCodeResponse, error) {
	f.gotEmail = email
	f.gotDraft = draft
	return f.resp, f.err
}

type fakeVerifier struct {
	record *models.RegistrationRecord
	err    error
}

func (f *fakeVerifier) Verify(context.Context, string, string) (*models.RegistrationRecord, error) {
	return f.record, f.err
}

type fakeReader struct {
	gotFilter models.RegistrationFilter
	list      *models.RegistrationListResponse
	record    *models.RegistrationRecord
	team      *models.TeamResponse
	stats     *models.RegistrationStats
	err       error
}

func (f *fakeReader) List(_ context.Context, filter models.RegistrationFilter) (*models.RegistrationListResponse, error) {
	f.gotFilter = filter
	return f.list, f.err
}

func (f *fakeReader) GetByNumber(_ context.Context, number int64) (*models.RegistrationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.record == nil || f.record.Number != number {
		return nil, models.ErrRegistrationNotFound
	}
	return f.record, nil
}

func (f *fakeReader) Team(_ context.Context, teamNumber int64) (*models.TeamResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.team == nil || f.team.TeamNumber != teamNumber {
		return nil, models.ErrTeamNotFound
	}
	return f.team, nil
}

func (f *fakeReader) Stats(context.Context, time.Time) (*models.RegistrationStats, error) {
	return f.stats, f.err
}

func (f *fakeReader) Deactivate(_ context.Context, number int64, now time.Time) (*models.RegistrationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.record == nil || f.record.Number != number || !f.record.Active {
		return nil, models.ErrRegistrationNotFound
	}
	f.record.Active = false
	f.record.Status = models.RegistrationStatusCancelled
	f.record.UpdatedAt = now
	return f.record, nil
}

type fakeGroups struct {
	groups []models.TeamGroup
	err    error
}

func (f *fakeGroups) CreateGroup(_ context.Context, req models.TeamGroupRequest) (*models.TeamGroup, error) {
	if f.err != nil {
		return nil, f.err
	}
	g := models.TeamGroup{
		Name:       req.Name,
		Channel:    req.Channel,
		Contact:    req.Contact,
		TeamNumber: int64(len(f.groups) + 1),
		Active:     true,
	}
	f.groups = append(f.groups, g)
	return &g, nil
}

func (f *fakeGroups) ListGroups(context.Context) (*models.TeamGroupListResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TeamGroupListResponse{Groups: f.groups, Total: len(f.groups)}, nil
}

func (f *fakeGroups) find(teamNumber int64) (int, error) {
	if f.err != nil {
		return -1, f.err
	}
	for i, g := range f.groups {
		if g.TeamNumber == teamNumber && g.Active {
			return i, nil
		}
	}
	return -1, models.ErrGroupNotFound
}

func (f *fakeGroups) GetGroup(_ context.Context, teamNumber int64) (*models.TeamGroup, error) {
	i, err := f.find(teamNumber)
	if err != nil {
		return nil, err
	}
	g := f.groups[i]
	return &g, nil
}

func (f *fakeGroups) UpdateGroup(_ context.Context, teamNumber int64, req models.TeamGroupRequest) (*models.TeamGroup, error) {
	i, err := f.find(teamNumber)
	if err != nil {
		return nil, err
	}
	f.groups[i].Name = req.Name
	f.groups[i].Channel = req.Channel
	f.groups[i].Contact = req.Contact
	g := f.groups[i]
	return &g, nil
}

func (f *fakeGroups) DeactivateGroup(_ context.Context, teamNumber int64) error {
	i, err := f.find(teamNumber)
	if err != nil {
		return err
	}
	f.groups[i].Active = false
	return nil
}

func sampleDraft() models.RegistrationDraft {
	return models.RegistrationDraft{
		Role:             models.RolePilot,
		GroupName:        "Alpha",
		FirstNames:       "Ana",
		LastNames:        "Quispe",
		Age:              34,
		Experience:       "expert",
		BloodType:        "O+",
		DocumentNumber:   "45678912",
		Email:            "ana@example.com",
		Phone:            "+51987654321",
		EmergencyContact: "Luis Quispe",
		VehicleType:      "utv",
		VehicleBrand:     "Polaris",
		VehicleModel:     "RZR",
		VehicleYear:      2022,
		ArrivalDay:       "friday",
	}
}

func performJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
