package patient

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type mockService struct{ mock.Mock }

func (m *mockService) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	args := m.Called(ctx, req)
	if p, ok := args.Get(0).(*model.Patient); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*model.Patient); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type env struct {
	router   *gin.Engine
	svc      *mockService
	jwt      auth.JWTService
	clinicID uuid.UUID
}

func newEnv() *env {
	gin.SetMode(gin.TestMode)
	middleware.UseJSONFieldNames()
	e := &env{
		svc:      new(mockService),
		jwt:      auth.NewJWTService("patient-secret", "clinic-api", time.Hour),
		clinicID: uuid.New(),
	}
	authMW := middleware.NewAuthMiddleware(e.jwt)
	e.router = gin.New()
	NewHandler(e.svc, authMW).RegisterRoutes(e.router.Group("/api/v1", authMW.Authenticate()))
	return e
}

func (e *env) request(t *testing.T, role model.UserRole, clinicID uuid.UUID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := e.jwt.GenerateAccessToken(&model.User{Base: model.Base{ID: uuid.New()}, ClinicID: clinicID, Role: role})
	require.NoError(t, err)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreatePatient(t *testing.T) {
	e := newEnv()
	body := map[string]interface{}{
		"clinic_id":  e.clinicID,
		"first_name": "Ana",
		"last_name":  "Lima",
		"email":      "ana@example.com",
	}
	e.svc.On("Create", mock.Anything, mock.Anything).Return(&model.Patient{Base: model.Base{ID: uuid.New()}, ClinicID: e.clinicID}, nil)

	w := e.request(t, model.UserRoleReceptionist, e.clinicID, http.MethodPost, "/api/v1/patients", body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = e.request(t, model.UserRoleReceptionist, uuid.New(), http.MethodPost, "/api/v1/patients", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.request(t, model.UserRoleDoctor, e.clinicID, http.MethodPost, "/api/v1/patients", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	e.svc.AssertNumberOfCalls(t, "Create", 1)
}

func TestGetPatient(t *testing.T) {
	e := newEnv()
	own := &model.Patient{Base: model.Base{ID: uuid.New()}, ClinicID: e.clinicID}
	foreign := &model.Patient{Base: model.Base{ID: uuid.New()}, ClinicID: uuid.New()}
	missing := uuid.New()
	e.svc.On("Get", mock.Anything, own.ID).Return(own, nil)
	e.svc.On("Get", mock.Anything, foreign.ID).Return(foreign, nil)
	e.svc.On("Get", mock.Anything, missing).Return(nil, apperrors.NewNotFound("patient", nil))

	assert.Equal(t, http.StatusOK, e.request(t, model.UserRoleAdmin, e.clinicID, http.MethodGet, "/api/v1/patients/"+own.ID.String(), nil).Code)
	assert.Equal(t, http.StatusForbidden, e.request(t, model.UserRoleAdmin, e.clinicID, http.MethodGet, "/api/v1/patients/"+foreign.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, e.request(t, model.UserRoleAdmin, e.clinicID, http.MethodGet, "/api/v1/patients/"+missing.String(), nil).Code)
}
