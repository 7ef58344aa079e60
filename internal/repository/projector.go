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
	"projector-maintenance-api/pkg/validation"
)

// Custom errors for better error handling
var (
	ErrProjectorNotFound    = errors.New("projector not found")
	ErrDuplicateSerialNo    = errors.New("projector with this serial number already exists")
	ErrInvalidSerialNo      = errors.New("invalid serial number format")
	ErrProjectorSiteMissing = errors.New("projector references a missing site")
)

// ProjectorRepository is an interface for interacting with projector data.
type ProjectorRepository interface {
	CreateProjector(ctx context.Context, projector model.Projector) error
	GetProjectorByID(ctx context.Context, id uuid.UUID) (*model.Projector, error)
	GetAllProjectors(ctx context.Context) ([]model.Projector, error)
	GetProjectorsByStatus(ctx context.Context, status model.MaintenanceStatus) ([]model.Projector, error)
	SerialNoExists(ctx context.Context, serialNo string) (bool, error)
	UpdateMaintenanceState(ctx context.Context, id uuid.UUID, lastServedAt *time.Time, status model.MaintenanceStatus) error
}

type projectorRepository struct {
	DB *sql.DB
}

// NewProjectorRepository creates a new ProjectorRepository.
func NewProjectorRepository(db *sql.DB) ProjectorRepository {
	return &projectorRepository{DB: db}
}

// CreateProjector adds a new projector to the database. The serial number is
// globally unique and the owning site must exist.
func (r *projectorRepository) CreateProjector(ctx context.Context, projector model.Projector) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	normalized, err := validation.ValidateSerialNo(projector.SerialNo)
	if err != nil {
		return ErrInvalidSerialNo
	}
	projector.SerialNo = normalized

	query := `
		INSERT INTO projectors (id, model, serial_no, site_id, last_served_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.DB.ExecContext(ctx, query,
		projector.ID,
		projector.Model,
		projector.SerialNo,
		projector.SiteID,
		projector.LastServedAt,
		projector.Status,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			if strings.Contains(err.Error(), "projectors_serial_no_key") || strings.Contains(err.Error(), "projectors_pkey") {
				return fmt.Errorf("%w: %s", ErrDuplicateSerialNo, projector.SerialNo)
			}
		}
		if strings.Contains(err.Error(), "violates foreign key constraint") {
			return fmt.Errorf("%w: %s", ErrProjectorSiteMissing, projector.SiteID)
		}
		return fmt.Errorf("failed to create projector: %w", err)
	}

	return nil
}

// GetProjectorByID retrieves a single projector by its ID.
func (r *projectorRepository) GetProjectorByID(ctx context.Context, id uuid.UUID) (*model.Projector, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, model, serial_no, site_id, last_served_at, status, created_at, updated_at
		FROM projectors
		WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)

	p, err := scanProjector(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectorNotFound
		}
		return nil, fmt.Errorf("failed to get projector by ID: %w", err)
	}
	return p, nil
}

// GetAllProjectors retrieves all projectors ordered by serial number.
func (r *projectorRepository) GetAllProjectors(ctx context.Context) ([]model.Projector, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT id, model, serial_no, site_id, last_served_at, status, created_at, updated_at
		FROM projectors
		ORDER BY serial_no`

	return r.queryProjectors(ctx, query)
}

// GetProjectorsByStatus retrieves projectors carrying the given stored
// maintenance status. Callers must treat the stored status as a cache; it is
// refreshed by the reconciler, not recomputed here.
func (r *projectorRepository) GetProjectorsByStatus(ctx context.Context, status model.MaintenanceStatus) ([]model.Projector, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT id, model, serial_no, site_id, last_served_at, status, created_at, updated_at
		FROM projectors
		WHERE status = $1
		ORDER BY serial_no`

	return r.queryProjectors(ctx, query, status)
}

// SerialNoExists checks if a projector with the given serial number exists.
func (r *projectorRepository) SerialNoExists(ctx context.Context, serialNo string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT EXISTS(SELECT 1 FROM projectors WHERE serial_no = $1)`

	var exists bool
	err := r.DB.QueryRowContext(ctx, query, serialNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check serial number existence: %w", err)
	}

	return exists, nil
}

// UpdateMaintenanceState overwrites the denormalized maintenance fields from
// the authoritative visit history. Only the reconciler and visit-state
// transitions call this.
func (r *projectorRepository) UpdateMaintenanceState(ctx context.Context, id uuid.UUID, lastServedAt *time.Time, status model.MaintenanceStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE projectors
		SET last_served_at = $1, status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3`

	result, err := r.DB.ExecContext(ctx, query, lastServedAt, status, id)
	if err != nil {
		return fmt.Errorf("failed to update projector maintenance state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProjectorNotFound
	}

	return nil
}

func (r *projectorRepository) queryProjectors(ctx context.Context, query string, args ...interface{}) ([]model.Projector, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projectors: %w", err)
	}
	defer rows.Close()

	var projectors []model.Projector
	for rows.Next() {
		p, err := scanProjector(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan projector: %w", err)
		}
		projectors = append(projectors, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return projectors, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProjector(row rowScanner) (*model.Projector, error) {
	var p model.Projector
	var lastServedAt sql.NullTime

	if err := row.Scan(&p.ID, &p.Model, &p.SerialNo, &p.SiteID, &lastServedAt, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	if lastServedAt.Valid {
		p.LastServedAt = &lastServedAt.Time
	}
	return &p, nil
}
