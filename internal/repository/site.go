package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/model"
)

// Custom errors for better error handling
var (
	ErrSiteNotFound     = errors.New("site not found")
	ErrDuplicateAddress = errors.New("site with this address already exists")
)

// SiteRepository is an interface for interacting with site data.
type SiteRepository interface {
	CreateSite(ctx context.Context, site model.Site) error
	GetSiteByID(ctx context.Context, id uuid.UUID) (*model.Site, error)
	GetAllSites(ctx context.Context) ([]model.Site, error)
	UpdateSiteContact(ctx context.Context, id uuid.UUID, contact string) error
}

type siteRepository struct {
	DB *sql.DB
}

// NewSiteRepository creates a new SiteRepository.
func NewSiteRepository(db *sql.DB) SiteRepository {
	return &siteRepository{DB: db}
}

// CreateSite adds a new site to the database. The address is unique; a
// duplicate insert surfaces as ErrDuplicateAddress.
func (r *siteRepository) CreateSite(ctx context.Context, site model.Site) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO sites (id, name, address, contact, site_code)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.DB.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.Address,
		site.Contact,
		site.SiteCode,
	)

	if err != nil {
		// PostgreSQL unique violation (error code 23505)
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			if strings.Contains(err.Error(), "sites_address_key") || strings.Contains(err.Error(), "sites_pkey") {
				return fmt.Errorf("%w: %s", ErrDuplicateAddress, site.Address)
			}
		}
		return fmt.Errorf("failed to create site: %w", err)
	}

	return nil
}

// GetSiteByID retrieves a single site by its ID.
func (r *siteRepository) GetSiteByID(ctx context.Context, id uuid.UUID) (*model.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, name, address, contact, site_code, created_at, updated_at
		FROM sites
		WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)

	var s model.Site
	if err := row.Scan(&s.ID, &s.Name, &s.Address, &s.Contact, &s.SiteCode, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site by ID: %w", err)
	}
	return &s, nil
}

// GetAllSites retrieves all sites ordered by name.
func (r *siteRepository) GetAllSites(ctx context.Context) ([]model.Site, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT id, name, address, contact, site_code, created_at, updated_at
		FROM sites
		ORDER BY name`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Contact, &s.SiteCode, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sites, nil
}

// UpdateSiteContact updates the only mutable site field.
func (r *siteRepository) UpdateSiteContact(ctx context.Context, id uuid.UUID, contact string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE sites
		SET contact = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`

	result, err := r.DB.ExecContext(ctx, query, contact, id)
	if err != nil {
		return fmt.Errorf("failed to update site contact: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSiteNotFound
	}

	return nil
}
