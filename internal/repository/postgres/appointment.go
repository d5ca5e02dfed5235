package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const appointmentColumns = `
	id, clinic_id, branch_id, patient_id, doctor_id,
	planned_start, planned_end, actual_start, actual_end,
	state, notes, subtotal, total, created_at, updated_at
`

const consultationColumns = `
	id, appointment_id, clinic_id, branch_id, patient_id, doctor_id,
	diagnosis, treatment, prescription, requested_exams, medical_notes,
	consulted_at, created_at
`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	appointment.Touch(time.Now().UTC())

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO appointments (
				id, clinic_id, branch_id, patient_id, doctor_id,
				planned_start, planned_end, actual_start, actual_end,
				state, notes, subtotal, total, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		_, err := tx.ExecContext(ctx, query,
			appointment.ID,
			appointment.ClinicID,
			appointment.BranchID,
			appointment.PatientID,
			appointment.DoctorID,
			appointment.PlannedStart,
			appointment.PlannedEnd,
			appointment.ActualStart,
			appointment.ActualEnd,
			appointment.State,
			appointment.Notes,
			appointment.Subtotal,
			appointment.Total,
			appointment.CreatedAt,
			appointment.UpdatedAt,
		)
		if err != nil {
			return err
		}

		lineQuery := `
			INSERT INTO appointment_services (
				id, appointment_id, service_id, duration_min, price, position
			) VALUES ($1, $2, $3, $4, $5, $6)
		`
		for i := range appointment.Services {
			line := &appointment.Services[i]
			line.ID = uuid.New()
			line.AppointmentID = appointment.ID
			line.Position = i
			if _, err := tx.ExecContext(ctx, lineQuery,
				line.ID,
				line.AppointmentID,
				line.ServiceID,
				line.DurationMin,
				line.Price,
				line.Position,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err))
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	if err := updateAppointment(ctx, r.db, appointment); err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return nil
}

func updateAppointment(ctx context.Context, db sqlx.ExecerContext, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET doctor_id = $1, actual_start = $2, actual_end = $3,
			state = $4, notes = $5, updated_at = $6
		WHERE id = $7
	`
	appointment.UpdatedAt = time.Now().UTC()

	result, err := db.ExecContext(ctx, query,
		appointment.DoctorID,
		appointment.ActualStart,
		appointment.ActualEnd,
		appointment.State,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(result)
}

func (r *appointmentRepository) ListByClinic(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE clinic_id = $1`
	args := []interface{}{filters.ClinicID}
	argCount := 2

	if filters.BranchID != nil {
		query += fmt.Sprintf(" AND branch_id = $%d", argCount)
		args = append(args, *filters.BranchID)
		argCount++
	}

	if filters.State != nil {
		query += fmt.Sprintf(" AND state = $%d", argCount)
		args = append(args, *filters.State)
		argCount++
	}

	if filters.From != nil {
		query += fmt.Sprintf(" AND planned_start >= $%d", argCount)
		args = append(args, *filters.From)
		argCount++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND planned_start <= $%d", argCount)
		args = append(args, *filters.To)
	}

	query += " ORDER BY planned_start DESC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE appointment_id = $1`
	var consultation model.Consultation
	if err := r.db.GetContext(ctx, &consultation, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to get consultation: %w", notFound(err))
	}
	return &consultation, nil
}

func (r *appointmentRepository) CreateConsultation(ctx context.Context, consultation *model.Consultation) error {
	if err := insertConsultation(ctx, r.db, consultation); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create consultation: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func insertConsultation(ctx context.Context, db sqlx.ExecerContext, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, appointment_id, clinic_id, branch_id, patient_id, doctor_id,
			diagnosis, treatment, prescription, requested_exams, medical_notes,
			consulted_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx, query,
		c.ID,
		c.AppointmentID,
		c.ClinicID,
		c.BranchID,
		c.PatientID,
		c.DoctorID,
		c.Diagnosis,
		c.Treatment,
		c.Prescription,
		c.RequestedExams,
		c.MedicalNotes,
		c.ConsultedAt,
		c.CreatedAt,
	)
	return err
}

func (r *appointmentRepository) CompleteWithConsultation(ctx context.Context, consultation *model.Consultation, appointment *model.Appointment) error {
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertConsultation(ctx, tx, consultation); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicate
			}
			return err
		}
		return updateAppointment(ctx, tx, appointment)
	})
	if err != nil {
		return fmt.Errorf("failed to register consultation: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Hydrate(ctx context.Context, appointments ...*model.Appointment) error {
	if len(appointments) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(appointments))
	patientIDs := make([]uuid.UUID, 0, len(appointments))
	byID := make(map[uuid.UUID]*model.Appointment, len(appointments))
	for _, a := range appointments {
		ids = append(ids, a.ID)
		patientIDs = append(patientIDs, a.PatientID)
		a.Services = []model.AppointmentServiceLine{}
		a.Consultation = nil
		byID[a.ID] = a
	}

	var lines []model.AppointmentServiceLine
	linesQuery := `
		SELECT s.id, s.appointment_id, s.service_id, COALESCE(sv.name, '') AS service_name,
			   s.duration_min, s.price, s.position
		FROM appointment_services s
		LEFT JOIN services sv ON sv.id = s.service_id
		WHERE s.appointment_id = ANY($1::uuid[])
		ORDER BY s.appointment_id, s.position
	`
	if err := r.db.SelectContext(ctx, &lines, linesQuery, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to load appointment services: %w", err)
	}
	for _, line := range lines {
		if a, ok := byID[line.AppointmentID]; ok {
			a.Services = append(a.Services, line)
		}
	}

	var patients []model.PatientSummary
	patientsQuery := `
		SELECT id, TRIM(first_name || ' ' || last_name) AS full_name, email, phone
		FROM patients
		WHERE id = ANY($1::uuid[])
	`
	if err := r.db.SelectContext(ctx, &patients, patientsQuery, uuidArray(patientIDs)); err != nil {
		return fmt.Errorf("failed to load appointment patients: %w", err)
	}
	byPatient := make(map[uuid.UUID]model.PatientSummary, len(patients))
	for _, p := range patients {
		byPatient[p.ID] = p
	}
	for _, a := range appointments {
		if p, ok := byPatient[a.PatientID]; ok {
			p := p
			a.Patient = &p
		}
	}

	var consultations []model.Consultation
	consultationsQuery := `SELECT ` + consultationColumns + ` FROM consultations WHERE appointment_id = ANY($1::uuid[])`
	if err := r.db.SelectContext(ctx, &consultations, consultationsQuery, uuidArray(ids)); err != nil {
		return fmt.Errorf("failed to load consultations: %w", err)
	}
	for i := range consultations {
		if a, ok := byID[consultations[i].AppointmentID]; ok {
			a.Consultation = &consultations[i]
		}
	}

	return nil
}
