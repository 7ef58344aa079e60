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
	ErrVisitNotFound          = errors.New("service visit not found")
	ErrServiceNumberConflict  = errors.New("service number already allocated for this projector")
	ErrVisitAlreadyCompleted  = errors.New("service visit is already completed")
	ErrVisitReferencesMissing = errors.New("service visit references a missing row")
)

// createVisitMaxAttempts bounds the retry loop for the read-then-insert race
// on (projector_id, service_number).
const createVisitMaxAttempts = 3

const visitColumns = `id, service_number, projector_id, site_id, assigner_id, worker_id,
		date, start_time, end_time, report_generated, remarks, running_hours,
		site_name, site_address, site_contact, created_at, updated_at`

// VisitRepository is an interface for interacting with service visit data.
// Visits are an append-only history per projector; there is no delete.
type VisitRepository interface {
	CreateVisit(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error)
	GetVisitByID(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error)
	GetAllVisitsPaginated(ctx context.Context, params PaginationParams) (*PaginatedVisits, error)
	GetVisitsByProjector(ctx context.Context, projectorID uuid.UUID) ([]model.ServiceVisit, error)
	GetVisitsByWorker(ctx context.Context, workerID uuid.UUID) ([]model.ServiceVisit, error)
	GetVisitsBySite(ctx context.Context, siteID uuid.UUID) ([]model.ServiceVisit, error)
	GetVisitsByDateRange(ctx context.Context, from, to time.Time) ([]model.ServiceVisit, error)
	GetOpenVisits(ctx context.Context) ([]model.ServiceVisit, error)
	SetStartTime(ctx context.Context, id uuid.UUID, startTime time.Time) error
	CompleteVisit(ctx context.Context, id uuid.UUID, endTime time.Time, remarks string, runningHours *float64) error
	MarkReportGenerated(ctx context.Context, id uuid.UUID) error
	UnassignWorker(ctx context.Context, id uuid.UUID) error
}

type visitRepository struct {
	DB *sql.DB
}

// NewVisitRepository creates a new VisitRepository.
func NewVisitRepository(db *sql.DB) VisitRepository {
	return &visitRepository{DB: db}
}

// CreateVisit inserts a visit, allocating the next per-projector service
// number inside a transaction. Two concurrent schedulers can still observe
// the same count; the unique constraint on (projector_id, service_number)
// rejects the loser and the allocation is retried with a fresh count.
func (r *visitRepository) CreateVisit(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < createVisitMaxAttempts; attempt++ {
		created, err := r.createVisitAttempt(ctx, visit)
		if err == nil {
			return created, nil
		}
		lastErr = err
		if !isServiceNumberConflict(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrServiceNumberConflict, lastErr)
}

func (r *visitRepository) createVisitAttempt(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	countQuery := `SELECT COUNT(*) FROM service_visits WHERE projector_id = $1`

	var count int
	if err := tx.QueryRowContext(ctx, countQuery, visit.ProjectorID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count projector visits: %w", err)
	}
	visit.ServiceNumber = count + 1

	insertQuery := `
		INSERT INTO service_visits (id, service_number, projector_id, site_id, assigner_id, worker_id,
			date, start_time, end_time, report_generated, remarks, running_hours,
			site_name, site_address, site_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = tx.ExecContext(ctx, insertQuery,
		visit.ID,
		visit.ServiceNumber,
		visit.ProjectorID,
		visit.SiteID,
		visit.AssignerID,
		uuidPtrToNull(visit.WorkerID),
		visit.Date,
		visit.StartTime,
		visit.EndTime,
		visit.ReportGenerated,
		visit.Remarks,
		visit.RunningHours,
		visit.SiteName,
		visit.SiteAddress,
		visit.SiteContact,
	)
	if err != nil {
		if strings.Contains(err.Error(), "violates foreign key constraint") {
			return nil, fmt.Errorf("%w: %v", ErrVisitReferencesMissing, err)
		}
		return nil, fmt.Errorf("failed to insert visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit visit: %w", err)
	}

	return &visit, nil
}

func isServiceNumberConflict(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint") &&
		strings.Contains(err.Error(), "service_visits_projector_id_service_number_key")
}

// GetVisitByID retrieves a single visit by its ID.
func (r *visitRepository) GetVisitByID(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM service_visits WHERE id = $1`, visitColumns)

	row := r.DB.QueryRowContext(ctx, query, id)

	v, err := scanVisit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to get visit by ID: %w", err)
	}
	return v, nil
}

// GetAllVisitsPaginated retrieves a page of visits, most recent first.
func (r *visitRepository) GetAllVisitsPaginated(ctx context.Context, params PaginationParams) (*PaginatedVisits, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		ORDER BY date DESC, service_number DESC
		OFFSET $1 LIMIT $2`, visitColumns)

	visits, err := r.queryVisits(ctx, query, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	var totalCount int
	countQuery := `SELECT COUNT(*) FROM service_visits`
	if err := r.DB.QueryRowContext(ctx, countQuery).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of visits: %w", err)
	}

	return &PaginatedVisits{
		Items:      visits,
		TotalCount: totalCount,
	}, nil
}

// GetVisitsByProjector retrieves the full visit history for a projector in
// service-number order.
func (r *visitRepository) GetVisitsByProjector(ctx context.Context, projectorID uuid.UUID) ([]model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		WHERE projector_id = $1
		ORDER BY service_number`, visitColumns)

	return r.queryVisits(ctx, query, projectorID)
}

// GetVisitsByWorker retrieves all visits assigned to a worker.
func (r *visitRepository) GetVisitsByWorker(ctx context.Context, workerID uuid.UUID) ([]model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		WHERE worker_id = $1
		ORDER BY date DESC`, visitColumns)

	return r.queryVisits(ctx, query, workerID)
}

// GetVisitsBySite retrieves all visits at a site.
func (r *visitRepository) GetVisitsBySite(ctx context.Context, siteID uuid.UUID) ([]model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		WHERE site_id = $1
		ORDER BY date DESC`, visitColumns)

	return r.queryVisits(ctx, query, siteID)
}

// GetVisitsByDateRange retrieves visits whose scheduled date falls in
// [from, to).
func (r *visitRepository) GetVisitsByDateRange(ctx context.Context, from, to time.Time) ([]model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		WHERE date >= $1 AND date < $2
		ORDER BY date`, visitColumns)

	return r.queryVisits(ctx, query, from, to)
}

// GetOpenVisits retrieves all visits with no completion timestamp and no
// report-generated flag, earliest scheduled date first.
func (r *visitRepository) GetOpenVisits(ctx context.Context) ([]model.ServiceVisit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s
		FROM service_visits
		WHERE end_time IS NULL AND report_generated = FALSE
		ORDER BY date`, visitColumns)

	return r.queryVisits(ctx, query)
}

// SetStartTime records when the worker began the visit.
func (r *visitRepository) SetStartTime(ctx context.Context, id uuid.UUID, startTime time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE service_visits
		SET start_time = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`

	return r.execExpectingRow(ctx, query, startTime, id)
}

// CompleteVisit records the end of the visit together with the worker's
// remarks and the projector's running-hours reading.
func (r *visitRepository) CompleteVisit(ctx context.Context, id uuid.UUID, endTime time.Time, remarks string, runningHours *float64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE service_visits
		SET end_time = $1, remarks = $2, running_hours = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`

	return r.execExpectingRow(ctx, query, endTime, remarks, runningHours, id)
}

// MarkReportGenerated sets the flag consumed by status derivation. The report
// document itself is rendered and stored by an external collaborator.
func (r *visitRepository) MarkReportGenerated(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE service_visits
		SET report_generated = TRUE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	return r.execExpectingRow(ctx, query, id)
}

// UnassignWorker clears the assigned worker. The visit's derived status
// reverts to pending.
func (r *visitRepository) UnassignWorker(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		UPDATE service_visits
		SET worker_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	return r.execExpectingRow(ctx, query, id)
}

func (r *visitRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update visit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrVisitNotFound
	}

	return nil
}

func (r *visitRepository) queryVisits(ctx context.Context, query string, args ...interface{}) ([]model.ServiceVisit, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	var visits []model.ServiceVisit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return visits, nil
}

func scanVisit(row rowScanner) (*model.ServiceVisit, error) {
	var v model.ServiceVisit
	var workerID uuid.NullUUID
	var startTime, endTime sql.NullTime
	var remarks sql.NullString
	var runningHours sql.NullFloat64

	if err := row.Scan(
		&v.ID, &v.ServiceNumber, &v.ProjectorID, &v.SiteID, &v.AssignerID, &workerID,
		&v.Date, &startTime, &endTime, &v.ReportGenerated, &remarks, &runningHours,
		&v.SiteName, &v.SiteAddress, &v.SiteContact, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if workerID.Valid {
		v.WorkerID = &workerID.UUID
	}
	if startTime.Valid {
		v.StartTime = &startTime.Time
	}
	if endTime.Valid {
		v.EndTime = &endTime.Time
	}
	if remarks.Valid {
		v.Remarks = remarks.String
	}
	if runningHours.Valid {
		v.RunningHours = &runningHours.Float64
	}
	return &v, nil
}

func uuidPtrToNull(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
