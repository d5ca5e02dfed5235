package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		Exists(ctx context.Context, id uuid.UUID) (bool, error)
	}

	BranchRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Branch, error)
		ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Branch, error)
	}

	ServiceRepository interface {
		// GetByIDsForClinic returns only services of the clinic; foreign ids are dropped.
		GetByIDsForClinic(ctx context.Context, clinicID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error)
		ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Service, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		FindByEmail(ctx context.Context, clinicID uuid.UUID, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
	}

	AppointmentRepository interface {
		// Create persists the appointment and its service lines atomically.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		ListByClinic(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Consultation, error)
		CreateConsultation(ctx context.Context, consultation *model.Consultation) error
		// CompleteWithConsultation inserts the consultation and updates the
		// appointment in one transaction. Returns ErrDuplicate when the
		// appointment already has a consultation.
		CompleteWithConsultation(ctx context.Context, consultation *model.Consultation, appointment *model.Appointment) error
		// Hydrate loads service lines, patient summary and consultation.
		Hydrate(ctx context.Context, appointments ...*model.Appointment) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending leases up to limit due events so concurrent workers skip them.
		ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
