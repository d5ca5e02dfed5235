package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type serviceRepository struct {
	BaseRepository
}

func NewServiceRepository(base BaseRepository) repository.ServiceRepository {
	return &serviceRepository{base}
}

func (r *serviceRepository) GetByIDsForClinic(ctx context.Context, clinicID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, clinic_id, name, duration_min, base_price, active, created_at, updated_at
		FROM services
		WHERE clinic_id = $1 AND id = ANY($2::uuid[])
	`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, clinicID, uuidArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to get services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Service, error) {
	query := `
		SELECT id, clinic_id, name, duration_min, base_price, active, created_at, updated_at
		FROM services
		WHERE clinic_id = $1 AND active
		ORDER BY name ASC
	`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}
