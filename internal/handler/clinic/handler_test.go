package clinic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type mockService struct{ mock.Mock }

func (m *mockService) GetPublicCatalog(ctx context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error) {
	args := m.Called(ctx, clinicID)
	if c, ok := args.Get(0).(*model.PublicCatalog); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) CreatePublic(ctx context.Context, req *model.CreatePublicAppointmentRequest) (*model.Appointment, error) {
	args := m.Called(ctx, req)
	if a, ok := args.Get(0).(*model.Appointment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func setupRouter(svc Service, limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.UseJSONFieldNames()
	r := gin.New()
	NewHandler(svc, limiter, 300).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func post(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetCatalog(t *testing.T) {
	svc := new(mockService)
	r := setupRouter(svc, nil)
	clinicID := uuid.New()
	unknown := uuid.New()

	svc.On("GetPublicCatalog", mock.Anything, clinicID).Return(&model.PublicCatalog{
		ClinicID: clinicID,
		Branches: []model.CatalogBranch{{ID: uuid.New(), Name: "North"}},
		Services: []model.CatalogService{{ID: uuid.New(), Name: "Checkup", DurationMin: 30, BasePrice: decimal.NewFromInt(100)}},
	}, nil)
	svc.On("GetPublicCatalog", mock.Anything, unknown).Return(nil, apperrors.NewNotFound("clinic", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/public/clinics/"+clinicID.String()+"/catalog", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))

	var resp struct {
		Status string              `json:"status"`
		Data   model.PublicCatalog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, httputil.StatusSuccess, resp.Status)
	require.Len(t, resp.Data.Services, 1)
	assert.Equal(t, "Checkup", resp.Data.Services[0].Name)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/public/clinics/"+unknown.String()+"/catalog", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/public/clinics/abc/catalog", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func validBooking() map[string]interface{} {
	return map[string]interface{}{
		"clinic_id":     uuid.New(),
		"branch_id":     uuid.New(),
		"first_name":    "Ana",
		"last_name":     "Lima",
		"email":         "ana@example.com",
		"planned_start": "2030-01-01T09:00:00Z",
		"service_ids":   []uuid.UUID{uuid.New()},
	}
}

func TestCreatePublicAppointment_HidesStaffFields(t *testing.T) {
	svc := new(mockService)
	r := setupRouter(svc, nil)

	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	doctor := uuid.New()
	svc.On("CreatePublic", mock.Anything, mock.MatchedBy(func(req *model.CreatePublicAppointmentRequest) bool {
		return req.Email == "ana@example.com" && req.PlannedStart.Equal(start)
	})).Return(&model.Appointment{
		Base:         model.Base{ID: uuid.New()},
		PatientID:    uuid.New(),
		DoctorID:     &doctor,
		PlannedStart: start,
		PlannedEnd:   start.Add(45 * time.Minute),
		State:        model.AppointmentStatePending,
		Notes:        "internal note",
		Total:        decimal.NewFromInt(150),
	}, nil)

	w := post(r, "/api/v1/public/appointments", validBooking())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "150.00", resp.Data["total"])
	assert.Equal(t, "2030-01-01T09:45:00Z", resp.Data["planned_end"])
	assert.Equal(t, "pending", resp.Data["state"])
	assert.NotContains(t, resp.Data, "doctor_id")
	assert.NotContains(t, resp.Data, "patient_id")
	assert.NotContains(t, resp.Data, "notes")
}

func TestCreatePublicAppointment_Invalid(t *testing.T) {
	svc := new(mockService)
	r := setupRouter(svc, nil)

	body := validBooking()
	body["email"] = "not-an-email"
	delete(body, "first_name")

	w := post(r, "/api/v1/public/appointments", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"first_name is required", "email must be a valid email"}, resp.Errors)
	svc.AssertNotCalled(t, "CreatePublic", mock.Anything, mock.Anything)
}

func TestCreatePublicAppointment_TrimsEmailBeforeValidation(t *testing.T) {
	svc := new(mockService)
	r := setupRouter(svc, nil)
	svc.On("CreatePublic", mock.Anything, mock.MatchedBy(func(req *model.CreatePublicAppointmentRequest) bool {
		return req.Email == "Ana@Example.com"
	})).Return(&model.Appointment{Base: model.Base{ID: uuid.New()}, State: model.AppointmentStatePending}, nil)

	body := validBooking()
	body["email"] = "  Ana@Example.com "

	w := post(r, "/api/v1/public/appointments", body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	svc.AssertExpectations(t)
}

func TestCreatePublicAppointment_ServiceRejection(t *testing.T) {
	svc := new(mockService)
	r := setupRouter(svc, nil)
	svc.On("CreatePublic", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewValidation("planned_start must be in the future"))

	w := post(r, "/api/v1/public/appointments", validBooking())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "planned_start must be in the future")
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	svc := new(mockService)
	svc.On("GetPublicCatalog", mock.Anything, mock.Anything).Return(&model.PublicCatalog{}, nil)
	r := setupRouter(svc, middleware.NewRateLimiter(middleware.RateLimiterConfig{RPS: 0.001, Burst: 1}))

	path := "/api/v1/public/clinics/" + uuid.NewString() + "/catalog"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
