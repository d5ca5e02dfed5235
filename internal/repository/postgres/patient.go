package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const patientColumns = `id, clinic_id, first_name, last_name, phone, email, date_of_birth, registered_at, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, clinic_id, first_name, last_name, phone, email,
			date_of_birth, registered_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	patient.Touch(time.Now().UTC())
	if patient.RegisteredAt.IsZero() {
		patient.RegisteredAt = patient.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.ClinicID,
		patient.FirstName,
		patient.LastName,
		patient.Phone,
		patient.Email,
		patient.DateOfBirth,
		patient.RegisteredAt,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create patient: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", notFound(err))
	}
	return &patient, nil
}

func (r *patientRepository) FindByEmail(ctx context.Context, clinicID uuid.UUID, email string) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE clinic_id = $1 AND email = $2`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, clinicID, email); err != nil {
		return nil, fmt.Errorf("failed to find patient: %w", notFound(err))
	}
	return &patient, nil
}

// Update refreshes contact fields. The email is the identity key and is never rewritten.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, phone = $3, date_of_birth = $4, updated_at = $5
		WHERE id = $6
	`
	patient.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Phone,
		patient.DateOfBirth,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}
