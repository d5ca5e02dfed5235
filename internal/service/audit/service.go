package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// Actions recorded on the clinical audit trail.
const (
	ActionAppointmentCreated     = "appointment.created"
	ActionDoctorAssigned         = "appointment.doctor_assigned"
	ActionStateChanged           = "appointment.state_changed"
	ActionConsultationRegistered = "consultation.registered"
	ActionPatientRegistered      = "patient.registered"
)

// Logger is the append-only audit sink used by the services.
type Logger interface {
	Log(ctx context.Context, actorID, clinicID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions)
}

type LogOptions struct {
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

type Service struct {
	zl *zap.Logger
}

func NewService(zl *zap.Logger) *Service {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Service{zl: zl}
}

// Log writes one audit record. uuid.Nil as actor means an anonymous caller.
func (s *Service) Log(ctx context.Context, actorID, clinicID uuid.UUID, action, entityType string, entityID uuid.UUID, opts *LogOptions) {
	fields := []zap.Field{
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID.String()),
		zap.String("clinic_id", clinicID.String()),
	}
	if actorID == uuid.Nil {
		fields = append(fields, zap.String("actor", "anonymous"))
	} else {
		fields = append(fields, zap.String("actor_id", actorID.String()))
	}
	if rid := httputil.RequestIDFromContext(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}

	if opts != nil {
		if opts.IPAddress != "" {
			fields = append(fields, zap.String("ip_address", opts.IPAddress))
		}
		if opts.UserAgent != "" {
			fields = append(fields, zap.String("user_agent", opts.UserAgent))
		}
		if len(opts.Metadata) > 0 {
			fields = append(fields, zap.Any("metadata", opts.Metadata))
		}
	}

	s.zl.Info(action, fields...)
}

// Sync flushes buffered records.
func (s *Service) Sync() error {
	return s.zl.Sync()
}
