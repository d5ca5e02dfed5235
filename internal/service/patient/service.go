package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/service/rules"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type Service struct {
	repo      repository.PatientRepository
	auditor   audit.Logger
	validator validator.Validator
	now       func() time.Time
}

func NewService(repo repository.PatientRepository, auditor audit.Logger) *Service {
	return &Service{
		repo:      repo,
		auditor:   auditor,
		validator: validator.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreateByEmail deduplicates public bookings on (clinic, email).
// A match gets its names and phone refreshed; the email is never rewritten.
func (s *Service) FindOrCreateByEmail(ctx context.Context, clinicID uuid.UUID, contact model.PatientContact) (*model.Patient, error) {
	email := rules.NormalizeEmail(contact.Email)

	existing, err := s.repo.FindByEmail(ctx, clinicID, email)
	switch {
	case err == nil:
		return s.refreshContact(ctx, existing, contact)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}

	now := s.now()
	p := &model.Patient{
		ClinicID:     clinicID,
		FirstName:    contact.FirstName,
		LastName:     contact.LastName,
		Phone:        contact.Phone,
		Email:        email,
		RegisteredAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create patient: %w", err)
		}
		// A concurrent booking created the row first.
		existing, err := s.repo.FindByEmail(ctx, clinicID, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find patient: %w", err)
		}
		return s.refreshContact(ctx, existing, contact)
	}
	return p, nil
}

func (s *Service) refreshContact(ctx context.Context, p *model.Patient, contact model.PatientContact) (*model.Patient, error) {
	p.FirstName = contact.FirstName
	p.LastName = contact.LastName
	p.Phone = contact.Phone
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return p, nil
}

// Get returns a NotFound AppError for unknown ids.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("patient", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get patient: %w", err))
	}
	return p, nil
}

// Create registers a patient from the front desk.
func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	req.Normalize()

	var result rules.Result
	result.Reasons = append(result.Reasons, s.validator.Validate(req)...)
	result.Merge(rules.ValidateBirthDate(req.DateOfBirth, s.now()))
	if err := result.Err(); err != nil {
		return nil, err
	}

	p := &model.Patient{
		ClinicID:     req.ClinicID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Email:        rules.NormalizeEmail(req.Email),
		DateOfBirth:  req.DateOfBirth,
		RegisteredAt: s.now(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("a patient with this email already exists in the clinic")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create patient: %w", err))
	}

	s.auditor.Log(ctx, actorID(ctx), p.ClinicID, audit.ActionPatientRegistered, "patient", p.ID, nil)
	return p, nil
}

// Update saves names, phone and date of birth.
func (s *Service) Update(ctx context.Context, p *model.Patient) error {
	if err := rules.ValidateBirthDate(p.DateOfBirth, s.now()).Err(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("patient", err)
		}
		return apperrors.Internal(fmt.Errorf("failed to update patient: %w", err))
	}
	return nil
}
