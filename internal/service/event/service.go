package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Emitter records domain events for asynchronous delivery.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Envelope is the JSON document stored in outbox_events.payload and
// published to the broker.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type EventService struct {
	outboxRepo repository.OutboxRepository
	now        func() time.Time
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{
		outboxRepo: outboxRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	id := uuid.New()
	envelope, err := json.Marshal(Envelope{
		ID:         id,
		Type:       eventType,
		OccurredAt: s.now(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	event := &model.OutboxEvent{
		ID:        id,
		EventType: eventType,
		Payload:   envelope,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Payloads of the scheduling events.
type (
	AppointmentCreated struct {
		AppointmentID uuid.UUID              `json:"appointment_id"`
		ClinicID      uuid.UUID              `json:"clinic_id"`
		BranchID      uuid.UUID              `json:"branch_id"`
		PatientID     uuid.UUID              `json:"patient_id"`
		State         model.AppointmentState `json:"state"`
		PlannedStart  time.Time              `json:"planned_start"`
		PlannedEnd    time.Time              `json:"planned_end"`
		Source        string                 `json:"source"`
	}

	DoctorAssigned struct {
		AppointmentID uuid.UUID              `json:"appointment_id"`
		ClinicID      uuid.UUID              `json:"clinic_id"`
		DoctorID      *uuid.UUID             `json:"doctor_id"`
		State         model.AppointmentState `json:"state"`
	}

	StateChanged struct {
		AppointmentID uuid.UUID              `json:"appointment_id"`
		ClinicID      uuid.UUID              `json:"clinic_id"`
		From          model.AppointmentState `json:"from"`
		To            model.AppointmentState `json:"to"`
	}

	ConsultationRegistered struct {
		ConsultationID uuid.UUID  `json:"consultation_id"`
		AppointmentID  uuid.UUID  `json:"appointment_id"`
		ClinicID       uuid.UUID  `json:"clinic_id"`
		DoctorID       *uuid.UUID `json:"doctor_id"`
		ConsultedAt    time.Time  `json:"consulted_at"`
	}
)
