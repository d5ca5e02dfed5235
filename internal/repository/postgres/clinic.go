package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	query := `
		SELECT id, name, phone, address, active, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`
	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", notFound(err))
	}
	return &clinic, nil
}

func (r *clinicRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM clinics WHERE id = $1 AND active)`
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check clinic: %w", err)
	}
	return exists, nil
}

type branchRepository struct {
	BaseRepository
}

func NewBranchRepository(base BaseRepository) repository.BranchRepository {
	return &branchRepository{base}
}

func (r *branchRepository) Get(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	query := `
		SELECT id, clinic_id, name, address, active, created_at, updated_at
		FROM branches
		WHERE id = $1
	`
	var branch model.Branch
	if err := r.db.GetContext(ctx, &branch, query, id); err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", notFound(err))
	}
	return &branch, nil
}

func (r *branchRepository) ListActiveByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Branch, error) {
	query := `
		SELECT id, clinic_id, name, address, active, created_at, updated_at
		FROM branches
		WHERE clinic_id = $1 AND active
		ORDER BY name ASC
	`
	var branches []*model.Branch
	if err := r.db.SelectContext(ctx, &branches, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}
