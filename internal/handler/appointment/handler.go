package appointment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// Service is the part of the scheduling service the staff API uses.
type Service interface {
	CreateInternal(ctx context.Context, req *model.CreateInternalAppointmentRequest) (*model.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	ListByClinic(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	AssignDoctor(ctx context.Context, appointmentID uuid.UUID, doctorID *uuid.UUID) (*model.Appointment, error)
	UpdateState(ctx context.Context, appointmentID uuid.UUID, state model.AppointmentState) (*model.Appointment, error)
	RegisterConsultation(ctx context.Context, appointmentID, executingUserID uuid.UUID, req *model.RegisterConsultationRequest) (*model.Consultation, error)
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
	desk := h.auth.RequireRoles(model.UserRoleAdmin, model.UserRoleReceptionist)
	anyStaff := h.auth.RequireRoles(model.UserRoleAdmin, model.UserRoleDoctor, model.UserRoleReceptionist)
	clinical := h.auth.RequireRoles(model.UserRoleAdmin, model.UserRoleDoctor)

	appointments := r.Group("/appointments")
	{
		appointments.POST("", desk, h.CreateAppointment)
		appointments.GET("/:id", anyStaff, h.GetAppointment)
		appointments.PUT("/:id/doctor", desk, h.AssignDoctor)
		appointments.PUT("/:id/state", desk, h.UpdateState)
		appointments.POST("/:id/consultation", clinical, h.RegisterConsultation)
	}
	r.GET("/clinics/:clinic_id/appointments", anyStaff, h.ListAppointments)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}

	var req model.CreateInternalAppointmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if !h.AuthorizeBranch(c, claims, req.ClinicID, req.BranchID) {
		return
	}

	appointment, err := h.service.CreateInternal(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, appointment)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appointment, ok := h.scopedAppointment(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}
	clinicID, ok := h.UUIDParam(c, "clinic_id")
	if !ok {
		return
	}
	if !h.AuthorizeClinic(c, claims, clinicID) {
		return
	}

	filters := &model.AppointmentFilters{ClinicID: clinicID}

	if id := c.Query("branch_id"); id != "" {
		branchID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid branch_id", err))
			return
		}
		filters.BranchID = &branchID
	}
	// Branch-bound staff only see their branch.
	if claims.Role != model.UserRoleAdmin && claims.BranchID != nil {
		if filters.BranchID != nil && *filters.BranchID != *claims.BranchID {
			httputil.RespondWithError(c, apperrors.Forbidden("resource belongs to another branch"))
			return
		}
		filters.BranchID = claims.BranchID
	}

	if s := c.Query("state"); s != "" {
		state := model.AppointmentState(s)
		filters.State = &state
	}

	var err error
	if filters.From, err = parseTimeQuery(c, "from"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if filters.To, err = parseTimeQuery(c, "to"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appointments, err := h.service.ListByClinic(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	current, ok := h.scopedAppointment(c)
	if !ok {
		return
	}

	var req model.AssignDoctorRequest
	if !h.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.AssignDoctor(c.Request.Context(), current.ID, req.DoctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointment)
}

func (h *Handler) UpdateState(c *gin.Context) {
	current, ok := h.scopedAppointment(c)
	if !ok {
		return
	}

	var req model.UpdateStateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	appointment, err := h.service.UpdateState(c.Request.Context(), current.ID, req.State)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointment)
}

// RegisterConsultation records the consultation as the authenticated user.
func (h *Handler) RegisterConsultation(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}
	current, ok := h.scopedAppointment(c)
	if !ok {
		return
	}

	var req model.RegisterConsultationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	consultation, err := h.service.RegisterConsultation(c.Request.Context(), current.ID, claims.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, consultation)
}

// scopedAppointment loads the :id appointment and checks it is inside the
// caller's clinic and branch.
func (h *Handler) scopedAppointment(c *gin.Context) (*model.Appointment, bool) {
	claims, ok := h.Caller(c)
	if !ok {
		return nil, false
	}
	id, ok := h.UUIDParam(c, "id")
	if !ok {
		return nil, false
	}

	appointment, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, false
	}
	if !h.AuthorizeBranch(c, claims, appointment.ClinicID, appointment.BranchID) {
		return nil, false
	}
	return appointment, true
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.BadRequest("invalid "+key+", expected RFC3339", err)
	}
	return &t, nil
}
