package model

import (
	"time"

	"github.com/google/uuid"
)

// Consultation is the clinical record of a fulfilled appointment.
// At most one exists per appointment.
type Consultation struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AppointmentID  uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	BranchID       uuid.UUID  `db:"branch_id" json:"branch_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID       *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	Treatment      string     `db:"treatment" json:"treatment"`
	Prescription   string     `db:"prescription" json:"prescription"`
	RequestedExams string     `db:"requested_exams" json:"requested_exams"`
	MedicalNotes   string     `db:"medical_notes" json:"medical_notes"`
	ConsultedAt    time.Time  `db:"consulted_at" json:"consulted_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type RegisterConsultationRequest struct {
	Diagnosis      string     `json:"diagnosis" binding:"required,max=4000"`
	Treatment      string     `json:"treatment" binding:"max=4000"`
	Prescription   string     `json:"prescription" binding:"max=4000"`
	RequestedExams string     `json:"requested_exams" binding:"max=4000"`
	MedicalNotes   string     `json:"medical_notes" binding:"max=4000"`
	ConsultedAt    *time.Time `json:"consulted_at"`
}
