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

var visitColumnNames = []string{
	"id", "service_number", "projector_id", "site_id", "assigner_id", "worker_id",
	"date", "start_time", "end_time", "report_generated", "remarks", "running_hours",
	"site_name", "site_address", "site_contact", "created_at", "updated_at",
}

func setupVisitTestDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock, VisitRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewVisitRepository(db)
	return db, mock, repo
}

func testVisit() model.ServiceVisit {
	workerID := uuid.New()
	return model.ServiceVisit{
		ID:          uuid.New(),
		ProjectorID: uuid.New(),
		SiteID:      uuid.New(),
		AssignerID:  uuid.New(),
		WorkerID:    &workerID,
		Date:        time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		SiteName:    "Odeon Central",
		SiteAddress: "12 King St",
		SiteContact: "ops@odeon.example",
	}
}

func visitRow(v model.ServiceVisit, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(visitColumnNames).AddRow(
		v.ID, v.ServiceNumber, v.ProjectorID, v.SiteID, v.AssignerID, uuidPtrToNull(v.WorkerID),
		v.Date, v.StartTime, v.EndTime, v.ReportGenerated, v.Remarks, v.RunningHours,
		v.SiteName, v.SiteAddress, v.SiteContact, now, now,
	)
}

func TestCreateVisit_FirstVisitGetsServiceNumberOne(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM service_visits WHERE projector_id = $1`)).
		WithArgs(visit.ProjectorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateVisit(context.Background(), visit)

	require.NoError(t, err)
	assert.Equal(t, 1, created.ServiceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_SecondVisitGetsServiceNumberTwo(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WithArgs(visit.ProjectorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateVisit(context.Background(), visit)

	require.NoError(t, err)
	assert.Equal(t, 2, created.ServiceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_RetriesOnServiceNumberRace(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()
	raceErr := errors.New(`pq: duplicate key value violates unique constraint "service_visits_projector_id_service_number_key"`)

	// First attempt loses the race.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
		WillReturnError(raceErr)
	mock.ExpectRollback()

	// Second attempt observes the new count and succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateVisit(context.Background(), visit)

	require.NoError(t, err)
	assert.Equal(t, 5, created.ServiceNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_GivesUpAfterRepeatedConflicts(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()
	raceErr := errors.New(`pq: duplicate key value violates unique constraint "service_visits_projector_id_service_number_key"`)

	for i := 0; i < createVisitMaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
			WillReturnError(raceErr)
		mock.ExpectRollback()
	}

	_, err := repo.CreateVisit(context.Background(), visit)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceNumberConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateVisit_ForeignKeyViolation(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO service_visits`)).
		WillReturnError(errors.New(`pq: insert or update on table "service_visits" violates foreign key constraint "service_visits_projector_id_fkey"`))
	mock.ExpectRollback()

	_, err := repo.CreateVisit(context.Background(), visit)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrVisitReferencesMissing))
}

func TestGetVisitByID_Success(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	visit := testVisit()
	visit.ServiceNumber = 1

	mock.ExpectQuery(`SELECT (.+) FROM service_visits WHERE id = \$1`).
		WithArgs(visit.ID).
		WillReturnRows(visitRow(visit, time.Now()))

	got, err := repo.GetVisitByID(context.Background(), visit.ID)

	require.NoError(t, err)
	assert.Equal(t, visit.ID, got.ID)
	assert.Equal(t, 1, got.ServiceNumber)
	require.NotNil(t, got.WorkerID)
	assert.Equal(t, *visit.WorkerID, *got.WorkerID)
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.EndTime)
}

func TestGetVisitByID_NotFound(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM service_visits WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetVisitByID(context.Background(), id)

	assert.True(t, errors.Is(err, ErrVisitNotFound))
}

func TestSetStartTime_Success(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	id := uuid.New()
	start := time.Now()

	mock.ExpectExec(`UPDATE service_visits`).
		WithArgs(start, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetStartTime(context.Background(), id, start)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnassignWorker_NotFound(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	id := uuid.New()

	mock.ExpectExec(`UPDATE service_visits`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UnassignWorker(context.Background(), id)

	assert.True(t, errors.Is(err, ErrVisitNotFound))
}

func TestGetVisitsByProjector_OrderedByServiceNumber(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	projectorID := uuid.New()
	first := testVisit()
	first.ProjectorID = projectorID
	first.ServiceNumber = 1
	second := testVisit()
	second.ProjectorID = projectorID
	second.ServiceNumber = 2

	rows := visitRow(first, time.Now()).AddRow(
		second.ID, second.ServiceNumber, second.ProjectorID, second.SiteID, second.AssignerID, uuidPtrToNull(second.WorkerID),
		second.Date, second.StartTime, second.EndTime, second.ReportGenerated, second.Remarks, second.RunningHours,
		second.SiteName, second.SiteAddress, second.SiteContact, time.Now(), time.Now(),
	)

	mock.ExpectQuery(`SELECT (.+) FROM service_visits WHERE projector_id = \$1`).
		WithArgs(projectorID).
		WillReturnRows(rows)

	visits, err := repo.GetVisitsByProjector(context.Background(), projectorID)

	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, 1, visits[0].ServiceNumber)
	assert.Equal(t, 2, visits[1].ServiceNumber)
}

func TestMarkReportGenerated_Success(t *testing.T) {
	db, mock, repo := setupVisitTestDB(t)
	defer db.Close()

	id := uuid.New()

	mock.ExpectExec(`UPDATE service_visits`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkReportGenerated(context.Background(), id)

	assert.NoError(t, err)
}
