package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	apperrors "projector-maintenance-api/pkg/errors"
	"projector-maintenance-api/pkg/validation"
)

// CatalogService handles the reference data admins manage: sites and the
// projectors installed at them. Neither is ever deleted.
type CatalogService struct {
	sites      repository.SiteRepository
	projectors repository.ProjectorRepository
	logger     *log.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(sites repository.SiteRepository, projectors repository.ProjectorRepository, logger *log.Logger) *CatalogService {
	if logger == nil {
		logger = log.Default()
	}
	return &CatalogService{
		sites:      sites,
		projectors: projectors,
		logger:     logger,
	}
}

// CreateSite registers a new customer site. The postal address is unique.
func (s *CatalogService) CreateSite(ctx context.Context, actor model.Actor, site model.Site) (*model.Site, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.UnauthorizedError("create sites")
	}

	if errs := validation.ValidateSiteInput(&site); len(errs) > 0 {
		fields := make(map[string]string, len(errs))
		for i, msg := range errs {
			fields[fieldKey(i)] = msg
		}
		return nil, apperrors.ValidationErrorWithDetails("invalid site", fields)
	}

	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}

	if err := s.sites.CreateSite(ctx, site); err != nil {
		if errors.Is(err, repository.ErrDuplicateAddress) {
			return nil, apperrors.AlreadyExistsError("site with this address")
		}
		return nil, apperrors.UnavailableError("failed to create site", err)
	}

	s.logger.Printf("Site created: ID=%s, name=%s", site.ID, site.Name)

	return &site, nil
}

// ListSites retrieves all sites.
func (s *CatalogService) ListSites(ctx context.Context) ([]model.Site, error) {
	sites, err := s.sites.GetAllSites(ctx)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to list sites", err)
	}
	return sites, nil
}

// UpdateSiteContact changes the only mutable site field.
func (s *CatalogService) UpdateSiteContact(ctx context.Context, actor model.Actor, siteID uuid.UUID, contact string) error {
	if !actor.IsAdmin() {
		return apperrors.UnauthorizedError("update sites")
	}
	if err := validation.ValidateRequired("site contact", contact); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	if err := s.sites.UpdateSiteContact(ctx, siteID, contact); err != nil {
		if errors.Is(err, repository.ErrSiteNotFound) {
			return apperrors.NotFoundError("site")
		}
		return apperrors.UnavailableError("failed to update site contact", err)
	}

	return nil
}

// CreateProjector registers a projector at a site. Serial numbers are
// globally unique and checked before insert; the owning site is immutable
// after creation.
func (s *CatalogService) CreateProjector(ctx context.Context, actor model.Actor, projector model.Projector) (*model.Projector, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.UnauthorizedError("create projectors")
	}

	if errs := validation.ValidateProjectorInput(&projector); len(errs) > 0 {
		fields := make(map[string]string, len(errs))
		for i, msg := range errs {
			fields[fieldKey(i)] = msg
		}
		return nil, apperrors.ValidationErrorWithDetails("invalid projector", fields)
	}

	if _, err := s.sites.GetSiteByID(ctx, projector.SiteID); err != nil {
		if errors.Is(err, repository.ErrSiteNotFound) {
			return nil, apperrors.NotFoundError("site")
		}
		return nil, apperrors.UnavailableError("failed to load site", err)
	}

	exists, err := s.projectors.SerialNoExists(ctx, projector.SerialNo)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to check serial number", err)
	}
	if exists {
		return nil, apperrors.AlreadyExistsError("projector with this serial number")
	}

	if projector.ID == uuid.Nil {
		projector.ID = uuid.New()
	}
	// A brand-new projector has never been served.
	projector.LastServedAt = nil
	projector.Status = model.MaintenancePending

	if err := s.projectors.CreateProjector(ctx, projector); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSerialNo):
			return nil, apperrors.AlreadyExistsError("projector with this serial number")
		case errors.Is(err, repository.ErrProjectorSiteMissing):
			return nil, apperrors.NotFoundError("site")
		case errors.Is(err, repository.ErrInvalidSerialNo):
			return nil, apperrors.ValidationError("invalid serial number format")
		default:
			return nil, apperrors.UnavailableError("failed to create projector", err)
		}
	}

	s.logger.Printf("Projector created: ID=%s, serial=%s, site=%s", projector.ID, projector.SerialNo, projector.SiteID)

	return &projector, nil
}

// ListProjectors retrieves all projectors.
func (s *CatalogService) ListProjectors(ctx context.Context) ([]model.Projector, error) {
	projectors, err := s.projectors.GetAllProjectors(ctx)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to list projectors", err)
	}
	return projectors, nil
}

func fieldKey(i int) string {
	return fmt.Sprintf("error_%d", i)
}
