// Package clinic serves the anonymous booking surface of a clinic: its
// catalog and public appointment requests.
package clinic

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Service interface {
	GetPublicCatalog(ctx context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error)
	CreatePublic(ctx context.Context, req *model.CreatePublicAppointmentRequest) (*model.Appointment, error)
}

// PublicAppointment is what an anonymous booker gets back. Staff-only
// fields and the patient record stay out of the response.
type PublicAppointment struct {
	ID           uuid.UUID                      `json:"id"`
	ClinicID     uuid.UUID                      `json:"clinic_id"`
	BranchID     uuid.UUID                      `json:"branch_id"`
	PlannedStart string                         `json:"planned_start"`
	PlannedEnd   string                         `json:"planned_end"`
	State        model.AppointmentState         `json:"state"`
	Total        string                         `json:"total"`
	Services     []model.AppointmentServiceLine `json:"services"`
}

type Handler struct {
	handler.BaseHandler
	service       Service
	limiter       *middleware.RateLimiter
	catalogMaxAge int
}

// NewHandler builds the public handler. catalogMaxAge is the Cache-Control
// max-age of catalog responses, in seconds.
func NewHandler(service Service, limiter *middleware.RateLimiter, catalogMaxAge int) *Handler {
	return &Handler{service: service, limiter: limiter, catalogMaxAge: catalogMaxAge}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	public := r.Group("/public")
	if h.limiter != nil {
		public.Use(h.limiter.RateLimit())
	}
	{
		public.GET("/clinics/:clinic_id/catalog", middleware.PublicCache(h.catalogMaxAge), h.GetCatalog)
		public.POST("/appointments", h.CreateAppointment)
	}
}

func (h *Handler) GetCatalog(c *gin.Context) {
	clinicID, ok := h.UUIDParam(c, "clinic_id")
	if !ok {
		return
	}

	catalog, err := h.service.GetPublicCatalog(c.Request.Context(), clinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, catalog)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreatePublicAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.CreatePublic(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, toPublic(appointment))
}

func toPublic(a *model.Appointment) PublicAppointment {
	return PublicAppointment{
		ID:           a.ID,
		ClinicID:     a.ClinicID,
		BranchID:     a.BranchID,
		PlannedStart: a.PlannedStart.UTC().Format(time.RFC3339),
		PlannedEnd:   a.PlannedEnd.UTC().Format(time.RFC3339),
		State:        a.State,
		Total:        a.Total.StringFixed(2),
		Services:     a.Services,
	}
}
