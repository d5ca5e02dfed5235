package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/pkg/lock"
)

type memCatalog struct {
	clinics  map[uuid.UUID]*model.Clinic
	branches map[uuid.UUID]*model.Branch
	services map[uuid.UUID]*model.Service
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		clinics:  map[uuid.UUID]*model.Clinic{},
		branches: map[uuid.UUID]*model.Branch{},
		services: map[uuid.UUID]*model.Service{},
	}
}

func (c *memCatalog) addClinic(name string) *model.Clinic {
	clinic := &model.Clinic{Base: model.Base{ID: uuid.New()}, Name: name, Active: true}
	c.clinics[clinic.ID] = clinic
	return clinic
}

func (c *memCatalog) addBranch(clinicID uuid.UUID, name string, active bool) *model.Branch {
	b := &model.Branch{Base: model.Base{ID: uuid.New()}, ClinicID: clinicID, Name: name, Active: active}
	c.branches[b.ID] = b
	return b
}

func (c *memCatalog) addService(clinicID uuid.UUID, name string, minutes int, price int64) *model.Service {
	s := &model.Service{
		Base:        model.Base{ID: uuid.New()},
		ClinicID:    clinicID,
		Name:        name,
		DurationMin: minutes,
		BasePrice:   decimal.NewFromInt(price),
		Active:      true,
	}
	c.services[s.ID] = s
	return s
}

func (c *memCatalog) GetClinic(_ context.Context, id uuid.UUID) (*model.Clinic, error) {
	return c.clinics[id], nil
}

func (c *memCatalog) GetBranch(_ context.Context, id uuid.UUID) (*model.Branch, error) {
	return c.branches[id], nil
}

func (c *memCatalog) ServicesForClinic(_ context.Context, clinicID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	var out []*model.Service
	for _, id := range ids {
		if s, ok := c.services[id]; ok && s.ClinicID == clinicID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *memCatalog) PublicCatalog(_ context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error) {
	return &model.PublicCatalog{ClinicID: clinicID}, nil
}

type memPatients struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Patient
}

func newMemPatients() *memPatients {
	return &memPatients{rows: map[uuid.UUID]*model.Patient{}}
}

func (r *memPatients) Create(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.ClinicID == p.ClinicID && existing.Email == p.Email {
			return repository.ErrDuplicate
		}
	}
	p.Touch(time.Now().UTC())
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memPatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPatients) FindByEmail(_ context.Context, clinicID uuid.UUID, email string) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ClinicID == clinicID && p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPatients) Update(_ context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.FirstName = p.FirstName
	existing.LastName = p.LastName
	existing.Phone = p.Phone
	existing.DateOfBirth = p.DateOfBirth
	return nil
}

type memUsers map[uuid.UUID]*model.User

func (u memUsers) add(clinicID uuid.UUID, role model.UserRole, active bool) *model.User {
	user := &model.User{Base: model.Base{ID: uuid.New()}, ClinicID: clinicID, Role: role, Active: active, FullName: string(role)}
	u[user.ID] = user
	return user
}

func (u memUsers) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (u memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, user := range u {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// memAppointments mirrors the postgres repository, including the unique
// index on consultations.appointment_id.
type memAppointments struct {
	mu            sync.Mutex
	appointments  map[uuid.UUID]model.Appointment
	consultations map[uuid.UUID]model.Consultation
	catalog       *memCatalog
	patients      *memPatients
	// skipConsultationLookup simulates the check-then-insert race.
	skipConsultationLookup bool
}

func newMemAppointments(catalog *memCatalog, patients *memPatients) *memAppointments {
	return &memAppointments{
		appointments:  map[uuid.UUID]model.Appointment{},
		consultations: map[uuid.UUID]model.Consultation{},
		catalog:       catalog,
		patients:      patients,
	}
}

func (r *memAppointments) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.Touch(time.Now().UTC())
	for i := range a.Services {
		a.Services[i].ID = uuid.New()
		a.Services[i].AppointmentID = a.ID
		a.Services[i].Position = i
	}
	cp := *a
	cp.Services = append([]model.AppointmentServiceLine(nil), a.Services...)
	cp.Patient, cp.Consultation = nil, nil
	r.appointments[a.ID] = cp
	return nil
}

func (r *memAppointments) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Services = nil
	return &a, nil
}

func (r *memAppointments) Update(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(a)
}

func (r *memAppointments) update(a *model.Appointment) error {
	existing, ok := r.appointments[a.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.DoctorID = a.DoctorID
	existing.ActualStart = a.ActualStart
	existing.ActualEnd = a.ActualEnd
	existing.State = a.State
	existing.Notes = a.Notes
	r.appointments[a.ID] = existing
	return nil
}

func (r *memAppointments) ListByClinic(_ context.Context, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.appointments {
		if a.ClinicID != f.ClinicID {
			continue
		}
		if f.BranchID != nil && a.BranchID != *f.BranchID {
			continue
		}
		if f.State != nil && a.State != *f.State {
			continue
		}
		if f.From != nil && a.PlannedStart.Before(*f.From) {
			continue
		}
		if f.To != nil && a.PlannedStart.After(*f.To) {
			continue
		}
		cp := a
		cp.Services = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedStart.After(out[j].PlannedStart) })
	return out, nil
}

func (r *memAppointments) GetConsultationByAppointment(_ context.Context, id uuid.UUID) (*model.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipConsultationLookup {
		return nil, repository.ErrNotFound
	}
	c, ok := r.consultations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *memAppointments) CreateConsultation(_ context.Context, c *model.Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertConsultation(c)
}

func (r *memAppointments) insertConsultation(c *model.Consultation) error {
	if _, ok := r.consultations[c.AppointmentID]; ok {
		return repository.ErrDuplicate
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	r.consultations[c.AppointmentID] = *c
	return nil
}

func (r *memAppointments) CompleteWithConsultation(_ context.Context, c *model.Consultation, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertConsultation(c); err != nil {
		return err
	}
	return r.update(a)
}

func (r *memAppointments) Hydrate(ctx context.Context, appointments ...*model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range appointments {
		stored, ok := r.appointments[a.ID]
		if !ok {
			continue
		}
		a.Services = append([]model.AppointmentServiceLine(nil), stored.Services...)
		for i := range a.Services {
			if s, ok := r.catalog.services[a.Services[i].ServiceID]; ok {
				a.Services[i].ServiceName = s.Name
			}
		}
		if p, err := r.patients.Get(ctx, a.PatientID); err == nil {
			a.Patient = &model.PatientSummary{ID: p.ID, FullName: p.FullName(), Email: p.Email, Phone: p.Phone}
		}
		a.Consultation = nil
		if c, ok := r.consultations[a.ID]; ok {
			c := c
			a.Consultation = &c
		}
	}
	return nil
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, c notification.Confirmation) {
	m.Called(ctx, c)
}

type mockEmitter struct {
	mock.Mock
}

func (m *mockEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	args := m.Called(ctx, eventType, payload)
	return args.Error(0)
}

// localLocker is a single-process stand-in for the redis locker.
type localLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLocalLocker() *localLocker {
	return &localLocker{held: map[string]bool{}}
}

func (l *localLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return lock.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
