package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/model"
)

// ErrWorkerNotFound is returned when a referenced worker does not exist.
var ErrWorkerNotFound = errors.New("worker not found")

// WorkerRepository reads provisioned accounts. The engine never writes
// workers; provisioning happens in an external system.
type WorkerRepository interface {
	GetWorkerByID(ctx context.Context, id uuid.UUID) (*model.Worker, error)
	GetWorkerByEmail(ctx context.Context, email string) (*model.Worker, error)
	GetWorkersByRole(ctx context.Context, role model.Role) ([]model.Worker, error)
}

type workerRepository struct {
	DB *sql.DB
}

// NewWorkerRepository creates a new WorkerRepository.
func NewWorkerRepository(db *sql.DB) WorkerRepository {
	return &workerRepository{DB: db}
}

// GetWorkerByID retrieves a single worker by ID.
func (r *workerRepository) GetWorkerByID(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM workers
		WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)

	var w model.Worker
	if err := row.Scan(&w.ID, &w.Name, &w.Email, &w.Role, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to get worker by ID: %w", err)
	}
	return &w, nil
}

// GetWorkerByEmail retrieves a single worker by their unique email.
func (r *workerRepository) GetWorkerByEmail(ctx context.Context, email string) (*model.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM workers
		WHERE email = $1`

	row := r.DB.QueryRowContext(ctx, query, email)

	var w model.Worker
	if err := row.Scan(&w.ID, &w.Name, &w.Email, &w.Role, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("failed to get worker by email: %w", err)
	}
	return &w, nil
}

// GetWorkersByRole retrieves all workers with the given role, ordered by name.
func (r *workerRepository) GetWorkersByRole(ctx context.Context, role model.Role) ([]model.Worker, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM workers
		WHERE role = $1
		ORDER BY name`

	rows, err := r.DB.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []model.Worker
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.Email, &w.Role, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return workers, nil
}
