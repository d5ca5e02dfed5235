package clinic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Service is the read side of the clinic catalog: clinics, branches and
// the services they sell.
type Service struct {
	clinics  repository.ClinicRepository
	branches repository.BranchRepository
	services repository.ServiceRepository
	cache    *gocache.Cache
	metrics  *metrics.Metrics
}

func NewService(
	clinics repository.ClinicRepository,
	branches repository.BranchRepository,
	services repository.ServiceRepository,
	cacheTTL time.Duration,
	m *metrics.Metrics,
) *Service {
	return &Service{
		clinics:  clinics,
		branches: branches,
		services: services,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		metrics:  m,
	}
}

// GetClinic returns nil without error when the clinic does not exist.
func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	clinic, err := s.clinics.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return clinic, nil
}

// GetBranch returns nil without error when the branch does not exist.
func (s *Service) GetBranch(ctx context.Context, id uuid.UUID) (*model.Branch, error) {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return branch, nil
}

// ServicesForClinic resolves ids scoped to the clinic. Inactive services
// are returned so the caller can say why an id was rejected.
func (s *Service) ServicesForClinic(ctx context.Context, clinicID uuid.UUID, ids []uuid.UUID) ([]*model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	services, err := s.services.GetByIDsForClinic(ctx, clinicID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve services: %w", err)
	}
	return services, nil
}

// PublicCatalog lists active branches and services, each sorted by name.
// Results are cached per clinic.
func (s *Service) PublicCatalog(ctx context.Context, clinicID uuid.UUID) (*model.PublicCatalog, error) {
	key := clinicID.String()
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CatalogCacheHits.WithLabelValues("hit").Inc()
		return cached.(*model.PublicCatalog), nil
	}
	s.metrics.CatalogCacheHits.WithLabelValues("miss").Inc()

	exists, err := s.clinics.Exists(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to check clinic: %w", err))
	}
	if !exists {
		return nil, apperrors.NewNotFound("clinic", nil)
	}

	branches, err := s.branches.ListActiveByClinic(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list branches: %w", err))
	}
	services, err := s.services.ListActiveByClinic(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list services: %w", err))
	}

	catalog := &model.PublicCatalog{
		ClinicID: clinicID,
		Branches: make([]model.CatalogBranch, 0, len(branches)),
		Services: make([]model.CatalogService, 0, len(services)),
	}
	for _, b := range branches {
		if !b.Active {
			continue
		}
		catalog.Branches = append(catalog.Branches, model.CatalogBranch{ID: b.ID, Name: b.Name, Address: b.Address})
	}
	for _, svc := range services {
		if !svc.Active {
			continue
		}
		catalog.Services = append(catalog.Services, model.CatalogService{
			ID:          svc.ID,
			Name:        svc.Name,
			DurationMin: svc.DurationMin,
			BasePrice:   svc.BasePrice,
		})
	}
	sort.SliceStable(catalog.Branches, func(i, j int) bool {
		return strings.ToLower(catalog.Branches[i].Name) < strings.ToLower(catalog.Branches[j].Name)
	})
	sort.SliceStable(catalog.Services, func(i, j int) bool {
		return strings.ToLower(catalog.Services[i].Name) < strings.ToLower(catalog.Services[j].Name)
	})

	s.cache.SetDefault(key, catalog)
	return catalog, nil
}

// Invalidate drops the cached catalog of a clinic.
func (s *Service) Invalidate(clinicID uuid.UUID) {
	s.cache.Delete(clinicID.String())
}
