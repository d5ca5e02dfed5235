package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppointmentState is the closed set of appointment lifecycle states.
type AppointmentState string

const (
	AppointmentStatePending   AppointmentState = "pending"
	AppointmentStateConfirmed AppointmentState = "confirmed"
	AppointmentStateCompleted AppointmentState = "completed"
	AppointmentStateCancelled AppointmentState = "cancelled"
)

func (s AppointmentState) Valid() bool {
	switch s {
	case AppointmentStatePending, AppointmentStateConfirmed, AppointmentStateCompleted, AppointmentStateCancelled:
		return true
	}
	return false
}

// InitialAllowed reports whether staff may create an appointment in this state.
func (s AppointmentState) InitialAllowed() bool {
	switch s {
	case AppointmentStatePending, AppointmentStateConfirmed, AppointmentStateCancelled:
		return true
	case AppointmentStateCompleted:
		return false
	}
	return false
}

// CanTransitionTo encodes the forward-only state machine.
func (s AppointmentState) CanTransitionTo(next AppointmentState) bool {
	switch s {
	case AppointmentStatePending:
		switch next {
		case AppointmentStateConfirmed, AppointmentStateCompleted, AppointmentStateCancelled:
			return true
		}
	case AppointmentStateConfirmed:
		switch next {
		case AppointmentStateCompleted, AppointmentStateCancelled:
			return true
		}
	case AppointmentStateCompleted, AppointmentStateCancelled:
		return false
	}
	return false
}

// Terminal reports whether no further transition is defined.
func (s AppointmentState) Terminal() bool {
	switch s {
	case AppointmentStateCompleted, AppointmentStateCancelled:
		return true
	case AppointmentStatePending, AppointmentStateConfirmed:
		return false
	}
	return false
}

func ParseAppointmentState(s string) (AppointmentState, error) {
	st := AppointmentState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown appointment state %q", s)
	}
	return st, nil
}

// Appointment is the aggregate root of the scheduling workflow.
// Related rows are referenced by id; Services, Patient and Consultation
// are only populated by the hydrate step.
type Appointment struct {
	Base
	ClinicID     uuid.UUID        `db:"clinic_id" json:"clinic_id"`
	BranchID     uuid.UUID        `db:"branch_id" json:"branch_id"`
	PatientID    uuid.UUID        `db:"patient_id" json:"patient_id"`
	DoctorID     *uuid.UUID       `db:"doctor_id" json:"doctor_id,omitempty"`
	PlannedStart time.Time        `db:"planned_start" json:"planned_start"`
	PlannedEnd   time.Time        `db:"planned_end" json:"planned_end"`
	ActualStart  *time.Time       `db:"actual_start" json:"actual_start,omitempty"`
	ActualEnd    *time.Time       `db:"actual_end" json:"actual_end,omitempty"`
	State        AppointmentState `db:"state" json:"state"`
	Notes        string           `db:"notes" json:"notes"`
	Subtotal     decimal.Decimal  `db:"subtotal" json:"subtotal"`
	Total        decimal.Decimal  `db:"total" json:"total"`

	Services     []AppointmentServiceLine `db:"-" json:"services"`
	Patient      *PatientSummary          `db:"-" json:"patient,omitempty"`
	Consultation *Consultation            `db:"-" json:"consultation,omitempty"`
}

// AppointmentServiceLine snapshots duration and price at booking time.
type AppointmentServiceLine struct {
	ID            uuid.UUID       `db:"id" json:"-"`
	AppointmentID uuid.UUID       `db:"appointment_id" json:"-"`
	ServiceID     uuid.UUID       `db:"service_id" json:"service_id"`
	ServiceName   string          `db:"service_name" json:"service_name"`
	DurationMin   int             `db:"duration_min" json:"duration_min"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Position      int             `db:"position" json:"-"`
}

type PatientSummary struct {
	ID       uuid.UUID `db:"id" json:"id"`
	FullName string    `db:"full_name" json:"full_name"`
	Email    string    `db:"email" json:"email"`
	Phone    string    `db:"phone" json:"phone"`
}

type CreatePublicAppointmentRequest struct {
	ClinicID     uuid.UUID   `json:"clinic_id" binding:"required"`
	BranchID     uuid.UUID   `json:"branch_id" binding:"required"`
	FirstName    string      `json:"first_name" binding:"required,min=2,max=150"`
	LastName     string      `json:"last_name" binding:"required,min=2,max=150"`
	Phone        string      `json:"phone" binding:"max=50"`
	Email        string      `json:"email" binding:"required,email,max=150"`
	PlannedStart time.Time   `json:"planned_start" binding:"required"`
	Notes        string      `json:"notes" binding:"max=250"`
	ServiceIDs   []uuid.UUID `json:"service_ids" binding:"required,min=1,dive,required"`
}

// UnmarshalJSON trims the contact fields so binding validation sees what
// will be stored.
func (r *CreatePublicAppointmentRequest) UnmarshalJSON(data []byte) error {
	type plain CreatePublicAppointmentRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	r.Normalize()
	return nil
}

func (r *CreatePublicAppointmentRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
}

type CreateInternalAppointmentRequest struct {
	ClinicID     uuid.UUID        `json:"clinic_id" binding:"required"`
	BranchID     uuid.UUID        `json:"branch_id" binding:"required"`
	PatientID    uuid.UUID        `json:"patient_id" binding:"required"`
	DoctorID     *uuid.UUID       `json:"doctor_id"`
	PlannedStart time.Time        `json:"planned_start" binding:"required"`
	Notes        string           `json:"notes" binding:"max=250"`
	ServiceIDs   []uuid.UUID      `json:"service_ids" binding:"required,min=1,dive,required"`
	InitialState AppointmentState `json:"initial_state"`
}

type AssignDoctorRequest struct {
	DoctorID *uuid.UUID `json:"doctor_id"`
}

type UpdateStateRequest struct {
	State AppointmentState `json:"state" binding:"required"`
}

type AppointmentFilters struct {
	ClinicID uuid.UUID
	BranchID *uuid.UUID
	State    *AppointmentState
	From     *time.Time
	To       *time.Time
}
