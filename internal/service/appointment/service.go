// Package appointment is the scheduling core: booking, doctor assignment,
// state changes and consultation recording.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/service/rules"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/lock"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Catalog resolves the clinic, branch and service records a booking refers to.
type Catalog interface {
	GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
	GetBranch(ctx context.Context, id uuid.UUID) (*model.Branch, error)
	ServicesForClinic(ctx context.Context, clinicID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error)
	PublicCatalog(ctx context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error)
}

type PatientDirectory interface {
	FindOrCreateByEmail(ctx context.Context, clinicID uuid.UUID, contact model.PatientContact) (*model.Patient, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
}

// ConfirmationDispatcher sends the booking confirmation without blocking.
type ConfirmationDispatcher interface {
	Dispatch(ctx context.Context, c notification.Confirmation)
}

type Deps struct {
	Catalog      Catalog
	Patients     PatientDirectory
	Users        repository.UserRepository
	Appointments repository.AppointmentRepository
	Dispatcher   ConfirmationDispatcher
	Locker       lock.Locker
	Events       event.Emitter
	Auditor      audit.Logger
	Metrics      *metrics.Metrics
}

type Service struct {
	catalog      Catalog
	patients     PatientDirectory
	users        repository.UserRepository
	appointments repository.AppointmentRepository
	dispatcher   ConfirmationDispatcher
	locker       lock.Locker
	events       event.Emitter
	auditor      audit.Logger
	metrics      *metrics.Metrics
	validator    validator.Validator
	now          func() time.Time
}

func NewService(deps Deps) *Service {
	return &Service{
		catalog:      deps.Catalog,
		patients:     deps.Patients,
		users:        deps.Users,
		appointments: deps.Appointments,
		dispatcher:   deps.Dispatcher,
		locker:       deps.Locker,
		events:       deps.Events,
		auditor:      deps.Auditor,
		metrics:      deps.Metrics,
		validator:    validator.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// booking is the resolved, validated part shared by both creation flows.
type booking struct {
	clinic *model.Clinic
	branch *model.Branch
	lines  []model.AppointmentServiceLine
	start  time.Time
	end    time.Time
}

// resolveBooking runs the clinic, branch, service and start checks. A
// missing clinic is NotFound; every other failure is collected into one
// validation error together with extra.
func (s *Service) resolveBooking(ctx context.Context, clinicID, branchID uuid.UUID, serviceIDs []uuid.UUID, start time.Time, extra ...rules.Result) (*booking, error) {
	clinic, err := s.catalog.GetClinic(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if clinic == nil || !clinic.Active {
		return nil, apperrors.NewNotFound("clinic", nil)
	}

	branch, err := s.catalog.GetBranch(ctx, branchID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ids := rules.DistinctServiceIDs(serviceIDs)
	services, err := s.catalog.ServicesForClinic(ctx, clinicID, ids)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var result rules.Result
	result.Merge(
		rules.ValidateBranch(branch, clinicID),
		rules.ValidateServices(ids, services, clinicID),
		rules.ValidateStart(start, s.now()),
	)
	result.Merge(extra...)
	if err := result.Err(); err != nil {
		return nil, err
	}

	lines := rules.BuildLines(ids, services)
	return &booking{
		clinic: clinic,
		branch: branch,
		lines:  lines,
		start:  start.UTC(),
		end:    rules.PlanWindow(start.UTC(), lines),
	}, nil
}

func (b *booking) appointment(patientID uuid.UUID, doctorID *uuid.UUID, state model.AppointmentState, notes string) *model.Appointment {
	subtotal, total := rules.Price(b.lines)
	return &model.Appointment{
		ClinicID:     b.clinic.ID,
		BranchID:     b.branch.ID,
		PatientID:    patientID,
		DoctorID:     doctorID,
		PlannedStart: b.start,
		PlannedEnd:   b.end,
		State:        state,
		Notes:        notes,
		Subtotal:     subtotal,
		Total:        total,
		Services:     b.lines,
	}
}

// CreatePublic books an appointment for an anonymous visitor. The patient
// is found or created by (clinic, email) and the appointment starts Pending.
func (s *Service) CreatePublic(ctx context.Context, req *model.CreatePublicAppointmentRequest) (*model.Appointment, error) {
	const op = "create_public"

	req.Normalize()
	if reasons := s.validator.Validate(req); len(reasons) > 0 {
		return nil, s.reject(op, apperrors.NewValidation(reasons...))
	}

	b, err := s.resolveBooking(ctx, req.ClinicID, req.BranchID, req.ServiceIDs, req.PlannedStart)
	if err != nil {
		return nil, s.reject(op, err)
	}

	patient, err := s.patients.FindOrCreateByEmail(ctx, req.ClinicID, model.PatientContact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	})
	if err != nil {
		return nil, s.reject(op, apperrors.Internal(err))
	}

	appt := b.appointment(patient.ID, nil, model.AppointmentStatePending, req.Notes)
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, s.reject(op, apperrors.Internal(err))
	}

	s.dispatcher.Dispatch(ctx, notification.Confirmation{
		AppointmentID: appt.ID,
		PatientEmail:  patient.Email,
		PatientName:   patient.FullName(),
		ClinicName:    b.clinic.Name,
		BranchName:    b.branch.Name,
		Start:         appt.PlannedStart,
		End:           appt.PlannedEnd,
		ServiceNames:  serviceNames(b.lines),
		Notes:         appt.Notes,
	})

	s.recordCreated(ctx, appt, "public")
	return s.hydrated(ctx, appt)
}

// CreateInternal books on behalf of an existing patient. Staff choose the
// initial state and may assign a doctor up front.
func (s *Service) CreateInternal(ctx context.Context, req *model.CreateInternalAppointmentRequest) (*model.Appointment, error) {
	const op = "create_internal"

	if reasons := s.validator.Validate(req); len(reasons) > 0 {
		return nil, s.reject(op, apperrors.NewValidation(reasons...))
	}

	state := req.InitialState
	if state == "" {
		state = model.AppointmentStateConfirmed
	}

	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if patient.ClinicID != req.ClinicID {
		return nil, s.reject(op, apperrors.NewNotFound("patient", nil))
	}

	extra := []rules.Result{rules.ValidateInitialState(state)}
	if req.DoctorID != nil {
		doctor, err := s.findUser(ctx, *req.DoctorID)
		if err != nil {
			return nil, s.reject(op, err)
		}
		extra = append(extra, rules.ValidateDoctor(doctor, req.ClinicID))
	}

	b, err := s.resolveBooking(ctx, req.ClinicID, req.BranchID, req.ServiceIDs, req.PlannedStart, extra...)
	if err != nil {
		return nil, s.reject(op, err)
	}

	appt := b.appointment(patient.ID, req.DoctorID, state, req.Notes)
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, s.reject(op, apperrors.Internal(err))
	}

	s.recordCreated(ctx, appt, "internal")
	return s.hydrated(ctx, appt)
}

// AssignDoctor sets or clears the doctor. Setting one on a Pending
// appointment confirms it; other states are left as they are.
func (s *Service) AssignDoctor(ctx context.Context, appointmentID uuid.UUID, doctorID *uuid.UUID) (*model.Appointment, error) {
	const op = "assign_doctor"

	appt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	previous := appt.State

	if doctorID == nil {
		appt.DoctorID = nil
	} else {
		doctor, err := s.findUser(ctx, *doctorID)
		if err != nil {
			return nil, s.reject(op, err)
		}
		if err := rules.ValidateDoctor(doctor, appt.ClinicID).Err(); err != nil {
			return nil, s.reject(op, err)
		}
		id := *doctorID
		appt.DoctorID = &id
		if appt.State == model.AppointmentStatePending {
			appt.State = model.AppointmentStateConfirmed
		}
	}

	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, s.reject(op, apperrors.Internal(err))
	}

	s.emit(ctx, model.EventAppointmentDoctorAssigned, event.DoctorAssigned{
		AppointmentID: appt.ID,
		ClinicID:      appt.ClinicID,
		DoctorID:      appt.DoctorID,
		State:         appt.State,
	})
	s.auditor.Log(ctx, actorID(ctx), appt.ClinicID, audit.ActionDoctorAssigned, "appointment", appt.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"doctor_id":  appt.DoctorID,
			"from_state": previous,
			"to_state":   appt.State,
		},
	})

	return s.hydrated(ctx, appt)
}

// UpdateState applies a staff-requested transition. Only confirming a
// Pending appointment and cancelling an open one are allowed; Completed is
// reached by registering a consultation.
func (s *Service) UpdateState(ctx context.Context, appointmentID uuid.UUID, state model.AppointmentState) (*model.Appointment, error) {
	const op = "update_state"

	if !state.Valid() {
		return nil, s.reject(op, apperrors.NewValidation(fmt.Sprintf("unknown state %q", state)))
	}

	appt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, s.reject(op, err)
	}

	from := appt.State
	if state == model.AppointmentStateCompleted {
		return nil, s.reject(op, apperrors.NewValidation("an appointment is completed by registering its consultation"))
	}
	if !from.CanTransitionTo(state) {
		return nil, s.reject(op, apperrors.NewValidation(fmt.Sprintf("cannot move appointment from %s to %s", from, state)))
	}

	appt.State = state
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, s.reject(op, apperrors.Internal(err))
	}

	s.emit(ctx, model.EventAppointmentStateChanged, event.StateChanged{
		AppointmentID: appt.ID,
		ClinicID:      appt.ClinicID,
		From:          from,
		To:            state,
	})
	s.auditor.Log(ctx, actorID(ctx), appt.ClinicID, audit.ActionStateChanged, "appointment", appt.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"from_state": from, "to_state": state},
	})

	return s.hydrated(ctx, appt)
}

// RegisterConsultation records the one consultation of an appointment and
// completes it. A per-appointment lock serializes concurrent attempts and
// the unique index on consultations.appointment_id backs it up.
func (s *Service) RegisterConsultation(ctx context.Context, appointmentID, executingUserID uuid.UUID, req *model.RegisterConsultationRequest) (*model.Consultation, error) {
	const op = "register_consultation"

	if reasons := s.validator.Validate(req); len(reasons) > 0 {
		return nil, s.reject(op, apperrors.NewValidation(reasons...))
	}

	var consultation *model.Consultation
	err := s.locker.WithLock(ctx, lock.AppointmentKey(appointmentID), func(ctx context.Context) error {
		var err error
		consultation, err = s.registerConsultation(ctx, appointmentID, executingUserID, req)
		return err
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockNotAcquired) {
			err = apperrors.NewConflict("a consultation for this appointment is already being registered")
		}
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.Internal(err)
		}
		return nil, s.reject(op, err)
	}

	s.metrics.ConsultationsRegistered.Inc()
	return consultation, nil
}

func (s *Service) registerConsultation(ctx context.Context, appointmentID, executingUserID uuid.UUID, req *model.RegisterConsultationRequest) (*model.Consultation, error) {
	appt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	_, err = s.appointments.GetConsultationByAppointment(ctx, appt.ID)
	switch {
	case err == nil:
		return nil, apperrors.NewConflict("the appointment already has a consultation")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal(err)
	}

	executor, err := s.findUser(ctx, executingUserID)
	if err != nil {
		return nil, err
	}
	if executor == nil || !executor.Active || executor.ClinicID != appt.ClinicID {
		return nil, apperrors.Unauthorized("user is not allowed to record consultations for this clinic")
	}
	if !executor.Role.CanRecordConsultation() {
		return nil, apperrors.Unauthorized("only doctors and administrators can record consultations")
	}

	if !appt.State.CanTransitionTo(model.AppointmentStateCompleted) {
		return nil, apperrors.NewValidation(fmt.Sprintf("a %s appointment cannot be completed", appt.State))
	}

	now := s.now()
	consultedAt := now
	if req.ConsultedAt != nil {
		consultedAt = req.ConsultedAt.UTC()
	}
	if err := rules.ValidateConsultedAt(consultedAt, now).Err(); err != nil {
		return nil, err
	}

	doctorOfRecord := appt.DoctorID
	if doctorOfRecord == nil && executor.IsDoctor() {
		id := executor.ID
		doctorOfRecord = &id
	}

	consultation := &model.Consultation{
		AppointmentID:  appt.ID,
		ClinicID:       appt.ClinicID,
		BranchID:       appt.BranchID,
		PatientID:      appt.PatientID,
		DoctorID:       doctorOfRecord,
		Diagnosis:      req.Diagnosis,
		Treatment:      req.Treatment,
		Prescription:   req.Prescription,
		RequestedExams: req.RequestedExams,
		MedicalNotes:   req.MedicalNotes,
		ConsultedAt:    consultedAt,
	}

	appt.State = model.AppointmentStateCompleted
	if appt.ActualStart == nil {
		start := appt.PlannedStart
		appt.ActualStart = &start
	}
	if appt.ActualEnd == nil {
		end := now
		appt.ActualEnd = &end
	}
	if appt.DoctorID == nil {
		appt.DoctorID = doctorOfRecord
	}

	if err := s.appointments.CompleteWithConsultation(ctx, consultation, appt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("the appointment already has a consultation")
		}
		return nil, apperrors.Internal(err)
	}

	s.emit(ctx, model.EventConsultationRegistered, event.ConsultationRegistered{
		ConsultationID: consultation.ID,
		AppointmentID:  appt.ID,
		ClinicID:       appt.ClinicID,
		DoctorID:       consultation.DoctorID,
		ConsultedAt:    consultation.ConsultedAt,
	})
	s.auditor.Log(ctx, executor.ID, appt.ClinicID, audit.ActionConsultationRegistered, "consultation", consultation.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"appointment_id": appt.ID},
	})

	return consultation, nil
}

// GetPublicCatalog lists what an anonymous visitor can book at a clinic.
func (s *Service) GetPublicCatalog(ctx context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error) {
	catalog, err := s.catalog.PublicCatalog(ctx, clinicID)
	if err != nil {
		return nil, s.reject("public_catalog", err)
	}
	return catalog, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.hydrated(ctx, appt)
}

// ListByClinic returns the clinic's appointments, newest planned start first.
func (s *Service) ListByClinic(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return nil, apperrors.NewValidation("from must not be after to")
	}
	if filters.State != nil && !filters.State.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown state %q", *filters.State))
	}

	appointments, err := s.appointments.ListByClinic(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := s.appointments.Hydrate(ctx, appointments...); err != nil {
		return nil, apperrors.Internal(err)
	}
	return appointments, nil
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return appt, nil
}

// findUser returns nil without error for unknown ids.
func (s *Service) findUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *Service) hydrated(ctx context.Context, appt *model.Appointment) (*model.Appointment, error) {
	if err := s.appointments.Hydrate(ctx, appt); err != nil {
		return nil, apperrors.Internal(err)
	}
	return appt, nil
}

func (s *Service) recordCreated(ctx context.Context, appt *model.Appointment, channel string) {
	s.metrics.AppointmentsCreated.WithLabelValues(channel).Inc()
	s.emit(ctx, model.EventAppointmentCreated, event.AppointmentCreated{
		AppointmentID: appt.ID,
		ClinicID:      appt.ClinicID,
		BranchID:      appt.BranchID,
		PatientID:     appt.PatientID,
		State:         appt.State,
		PlannedStart:  appt.PlannedStart,
		PlannedEnd:    appt.PlannedEnd,
		Source:        channel,
	})
	s.auditor.Log(ctx, actorID(ctx), appt.ClinicID, audit.ActionAppointmentCreated, "appointment", appt.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{
			"channel": channel,
			"state":   appt.State,
			"total":   appt.Total.String(),
		},
	})
}

// emit is best effort: the write has already been committed, so a failed
// outbox insert is logged rather than returned.
func (s *Service) emit(ctx context.Context, eventType string, payload interface{}) {
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit event")
	}
}

func (s *Service) reject(op string, err error) error {
	kind := "internal"
	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Code {
		case apperrors.ErrNotFound:
			kind = "not_found"
		case apperrors.ErrValidation, apperrors.ErrBadRequest:
			kind = "validation"
		case apperrors.ErrConflict:
			kind = "conflict"
		case apperrors.ErrUnauthorized, apperrors.ErrForbidden:
			kind = "unauthorized"
		}
	}
	s.metrics.SchedulingRejections.WithLabelValues(op, kind).Inc()
	return err
}

func serviceNames(lines []model.AppointmentServiceLine) []string {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.ServiceName)
	}
	return names
}

func actorID(ctx context.Context) uuid.UUID {
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		return claims.UserID
	}
	return uuid.Nil
}
