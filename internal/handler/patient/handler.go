package patient

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
}

type Handler struct {
	handler.BaseHandler
	service Service
	auth    *middleware.AuthMiddleware
}

func NewHandler(service Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	patients.Use(h.auth.RequireRoles(model.UserRoleAdmin, model.UserRoleReceptionist))
	{
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !h.AuthorizeClinic(c, claims, req.ClinicID) {
		return
	}

	patient, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, patient)
}

func (h *Handler) GetPatient(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return
	}

	patient, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !h.AuthorizeClinic(c, claims, patient.ClinicID) {
		return
	}

	httputil.RespondWithSuccess(c, patient)
}
