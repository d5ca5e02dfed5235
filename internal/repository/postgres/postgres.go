package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Repositories bundles every postgres-backed repository.
type Repositories struct {
	Clinics      repository.ClinicRepository
	Branches     repository.BranchRepository
	Services     repository.ServiceRepository
	Users        repository.UserRepository
	Patients     repository.PatientRepository
	Appointments repository.AppointmentRepository
	Outbox       repository.OutboxRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := NewBaseRepository(db)
	return &Repositories{
		Clinics:      NewClinicRepository(base),
		Branches:     NewBranchRepository(base),
		Services:     NewServiceRepository(base),
		Users:        NewUserRepository(base),
		Patients:     NewPatientRepository(base),
		Appointments: NewAppointmentRepository(base),
		Outbox:       NewOutboxRepository(base),
	}
}
