package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	ClinicID     uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Phone        string     `db:"phone" json:"phone"`
	Email        string     `db:"email" json:"email"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PatientContact is what a public booking supplies about the patient.
type PatientContact struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

type CreatePatientRequest struct {
	ClinicID    uuid.UUID  `json:"clinic_id" binding:"required"`
	FirstName   string     `json:"first_name" binding:"required,min=2,max=150"`
	LastName    string     `json:"last_name" binding:"required,min=2,max=150"`
	Phone       string     `json:"phone" binding:"max=50"`
	Email       string     `json:"email" binding:"required,email,max=150"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

func (r *CreatePatientRequest) UnmarshalJSON(data []byte) error {
	type plain CreatePatientRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	r.Normalize()
	return nil
}

func (r *CreatePatientRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
}
