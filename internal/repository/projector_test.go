package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projector-maintenance-api/internal/model"
)

func setupProjectorTestDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock, ProjectorRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewProjectorRepository(db)
	return db, mock, repo
}

func TestCreateProjector_Success(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	projector := model.Projector{
		ID:       uuid.New(),
		Model:    "Barco SP4K-15",
		SerialNo: "BC-9981-X",
		SiteID:   uuid.New(),
		Status:   model.MaintenancePending,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO projectors (id, model, serial_no, site_id, last_served_at, status) VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs(projector.ID, projector.Model, projector.SerialNo, projector.SiteID, projector.LastServedAt, projector.Status).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateProjector(context.Background(), projector)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjector_InvalidSerial(t *testing.T) {
	db, _, repo := setupProjectorTestDB(t)
	defer db.Close()

	projector := model.Projector{
		ID:       uuid.New(),
		Model:    "Barco SP4K-15",
		SerialNo: "!!",
		SiteID:   uuid.New(),
	}

	err := repo.CreateProjector(context.Background(), projector)

	assert.True(t, errors.Is(err, ErrInvalidSerialNo))
}

func TestCreateProjector_DuplicateSerial(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	projector := model.Projector{
		ID:       uuid.New(),
		Model:    "Barco SP4K-15",
		SerialNo: "BC-9981-X",
		SiteID:   uuid.New(),
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO projectors`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "projectors_serial_no_key"`))

	err := repo.CreateProjector(context.Background(), projector)

	assert.True(t, errors.Is(err, ErrDuplicateSerialNo))
}

func TestGetProjectorByID_NullLastServedAt(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	id := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "model", "serial_no", "site_id", "last_served_at", "status", "created_at", "updated_at"}).
		AddRow(id, "Barco SP4K-15", "BC-9981-X", uuid.New(), nil, "pending", now, now)

	mock.ExpectQuery(`SELECT (.+) FROM projectors WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)

	got, err := repo.GetProjectorByID(context.Background(), id)

	require.NoError(t, err)
	assert.Nil(t, got.LastServedAt)
	assert.Equal(t, model.MaintenancePending, got.Status)
}

func TestGetProjectorByID_NotFound(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM projectors WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProjectorByID(context.Background(), id)

	assert.True(t, errors.Is(err, ErrProjectorNotFound))
}

func TestUpdateMaintenanceState_Success(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	id := uuid.New()
	served := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE projectors`).
		WithArgs(served, model.MaintenanceCompleted, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateMaintenanceState(context.Background(), id, &served, model.MaintenanceCompleted)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMaintenanceState_NotFound(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	id := uuid.New()

	mock.ExpectExec(`UPDATE projectors`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateMaintenanceState(context.Background(), id, nil, model.MaintenancePending)

	assert.True(t, errors.Is(err, ErrProjectorNotFound))
}

func TestGetProjectorsByStatus(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "model", "serial_no", "site_id", "last_served_at", "status", "created_at", "updated_at"}).
		AddRow(uuid.New(), "Barco SP4K-15", "BC-0001", uuid.New(), nil, "scheduled", now, now).
		AddRow(uuid.New(), "Christie CP2315", "CH-0002", uuid.New(), now.Add(-time.Hour), "scheduled", now, now)

	mock.ExpectQuery(`SELECT (.+) FROM projectors WHERE status = \$1`).
		WithArgs(model.MaintenanceScheduled).
		WillReturnRows(rows)

	got, err := repo.GetProjectorsByStatus(context.Background(), model.MaintenanceScheduled)

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSerialNoExists(t *testing.T) {
	db, mock, repo := setupProjectorTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM projectors WHERE serial_no = $1)`)).
		WithArgs("BC-9981-X").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SerialNoExists(context.Background(), "BC-9981-X")

	require.NoError(t, err)
	assert.True(t, exists)
}
