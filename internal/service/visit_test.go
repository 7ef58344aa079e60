package service

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projector-maintenance-api/internal/clock"
	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/status"
	apperrors "projector-maintenance-api/pkg/errors"
)

// Mock implementations for testing

type MockVisitRepo struct {
	CreateVisitFunc            func(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error)
	GetVisitByIDFunc           func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error)
	GetAllVisitsPaginatedFunc  func(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedVisits, error)
	SetStartTimeFunc           func(ctx context.Context, id uuid.UUID, startTime time.Time) error
	CompleteVisitFunc          func(ctx context.Context, id uuid.UUID, endTime time.Time, remarks string, runningHours *float64) error
	MarkReportGeneratedFunc    func(ctx context.Context, id uuid.UUID) error
	UnassignWorkerFunc         func(ctx context.Context, id uuid.UUID) error
}

func (m *MockVisitRepo) CreateVisit(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
	if m.CreateVisitFunc != nil {
		return m.CreateVisitFunc(ctx, visit)
	}
	visit.ServiceNumber = 1
	return &visit, nil
}

func (m *MockVisitRepo) GetVisitByID(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
	if m.GetVisitByIDFunc != nil {
		return m.GetVisitByIDFunc(ctx, id)
	}
	return nil, repository.ErrVisitNotFound
}

func (m *MockVisitRepo) GetAllVisitsPaginated(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedVisits, error) {
	if m.GetAllVisitsPaginatedFunc != nil {
		return m.GetAllVisitsPaginatedFunc(ctx, params)
	}
	return &repository.PaginatedVisits{Items: []model.ServiceVisit{}}, nil
}

func (m *MockVisitRepo) GetVisitsByProjector(ctx context.Context, projectorID uuid.UUID) ([]model.ServiceVisit, error) {
	return nil, nil
}

func (m *MockVisitRepo) GetVisitsByWorker(ctx context.Context, workerID uuid.UUID) ([]model.ServiceVisit, error) {
	return nil, nil
}

func (m *MockVisitRepo) GetVisitsBySite(ctx context.Context, siteID uuid.UUID) ([]model.ServiceVisit, error) {
	return nil, nil
}

func (m *MockVisitRepo) GetVisitsByDateRange(ctx context.Context, from, to time.Time) ([]model.ServiceVisit, error) {
	return nil, nil
}

func (m *MockVisitRepo) GetOpenVisits(ctx context.Context) ([]model.ServiceVisit, error) {
	return nil, nil
}

func (m *MockVisitRepo) SetStartTime(ctx context.Context, id uuid.UUID, startTime time.Time) error {
	if m.SetStartTimeFunc != nil {
		return m.SetStartTimeFunc(ctx, id, startTime)
	}
	return nil
}

func (m *MockVisitRepo) CompleteVisit(ctx context.Context, id uuid.UUID, endTime time.Time, remarks string, runningHours *float64) error {
	if m.CompleteVisitFunc != nil {
		return m.CompleteVisitFunc(ctx, id, endTime, remarks, runningHours)
	}
	return nil
}

func (m *MockVisitRepo) MarkReportGenerated(ctx context.Context, id uuid.UUID) error {
	if m.MarkReportGeneratedFunc != nil {
		return m.MarkReportGeneratedFunc(ctx, id)
	}
	return nil
}

func (m *MockVisitRepo) UnassignWorker(ctx context.Context, id uuid.UUID) error {
	if m.UnassignWorkerFunc != nil {
		return m.UnassignWorkerFunc(ctx, id)
	}
	return nil
}

type MockProjectorRepo struct {
	CreateProjectorFunc  func(ctx context.Context, projector model.Projector) error
	GetProjectorByIDFunc func(ctx context.Context, id uuid.UUID) (*model.Projector, error)
	SerialNoExistsFunc   func(ctx context.Context, serialNo string) (bool, error)
}

func (m *MockProjectorRepo) CreateProjector(ctx context.Context, projector model.Projector) error {
	if m.CreateProjectorFunc != nil {
		return m.CreateProjectorFunc(ctx, projector)
	}
	return nil
}

func (m *MockProjectorRepo) GetProjectorByID(ctx context.Context, id uuid.UUID) (*model.Projector, error) {
	if m.GetProjectorByIDFunc != nil {
		return m.GetProjectorByIDFunc(ctx, id)
	}
	return nil, repository.ErrProjectorNotFound
}

func (m *MockProjectorRepo) GetAllProjectors(ctx context.Context) ([]model.Projector, error) {
	return nil, nil
}

func (m *MockProjectorRepo) GetProjectorsByStatus(ctx context.Context, s model.MaintenanceStatus) ([]model.Projector, error) {
	return nil, nil
}

func (m *MockProjectorRepo) SerialNoExists(ctx context.Context, serialNo string) (bool, error) {
	if m.SerialNoExistsFunc != nil {
		return m.SerialNoExistsFunc(ctx, serialNo)
	}
	return false, nil
}

func (m *MockProjectorRepo) UpdateMaintenanceState(ctx context.Context, id uuid.UUID, lastServedAt *time.Time, s model.MaintenanceStatus) error {
	return nil
}

type MockSiteRepo struct {
	CreateSiteFunc        func(ctx context.Context, site model.Site) error
	GetSiteByIDFunc       func(ctx context.Context, id uuid.UUID) (*model.Site, error)
	UpdateSiteContactFunc func(ctx context.Context, id uuid.UUID, contact string) error
}

func (m *MockSiteRepo) CreateSite(ctx context.Context, site model.Site) error {
	if m.CreateSiteFunc != nil {
		return m.CreateSiteFunc(ctx, site)
	}
	return nil
}

func (m *MockSiteRepo) GetSiteByID(ctx context.Context, id uuid.UUID) (*model.Site, error) {
	if m.GetSiteByIDFunc != nil {
		return m.GetSiteByIDFunc(ctx, id)
	}
	return nil, repository.ErrSiteNotFound
}

func (m *MockSiteRepo) GetAllSites(ctx context.Context) ([]model.Site, error) { return nil, nil }

func (m *MockSiteRepo) UpdateSiteContact(ctx context.Context, id uuid.UUID, contact string) error {
	if m.UpdateSiteContactFunc != nil {
		return m.UpdateSiteContactFunc(ctx, id, contact)
	}
	return nil
}

type MockWorkerRepo struct {
	GetWorkerByIDFunc func(ctx context.Context, id uuid.UUID) (*model.Worker, error)
}

func (m *MockWorkerRepo) GetWorkerByID(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
	if m.GetWorkerByIDFunc != nil {
		return m.GetWorkerByIDFunc(ctx, id)
	}
	return nil, repository.ErrWorkerNotFound
}

func (m *MockWorkerRepo) GetWorkerByEmail(ctx context.Context, email string) (*model.Worker, error) {
	return nil, repository.ErrWorkerNotFound
}

func (m *MockWorkerRepo) GetWorkersByRole(ctx context.Context, role model.Role) ([]model.Worker, error) {
	return nil, nil
}

// MockNotifier records notifications on a channel so tests can wait for the
// async send.
type MockNotifier struct {
	Sent chan VisitNotification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Sent: make(chan VisitNotification, 4)}
}

func (m *MockNotifier) SendVisitNotification(ctx context.Context, n VisitNotification) error {
	m.Sent <- n
	return nil
}

var (
	_ repository.VisitRepository     = (*MockVisitRepo)(nil)
	_ repository.ProjectorRepository = (*MockProjectorRepo)(nil)
	_ repository.SiteRepository      = (*MockSiteRepo)(nil)
	_ repository.WorkerRepository    = (*MockWorkerRepo)(nil)
	_ NotificationService            = (*MockNotifier)(nil)
)

var serviceNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type visitFixture struct {
	siteID      uuid.UUID
	projectorID uuid.UUID
	workerID    uuid.UUID
	admin       model.Actor
	fieldWorker model.Actor

	visits     *MockVisitRepo
	projectors *MockProjectorRepo
	sites      *MockSiteRepo
	workers    *MockWorkerRepo
	notifier   *MockNotifier
}

func newVisitFixture() *visitFixture {
	f := &visitFixture{
		siteID:      uuid.New(),
		projectorID: uuid.New(),
		workerID:    uuid.New(),
		notifier:    NewMockNotifier(),
	}
	f.admin = model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	f.fieldWorker = model.Actor{ID: f.workerID, Role: model.RoleFieldWorker}

	f.sites = &MockSiteRepo{
		GetSiteByIDFunc: func(ctx context.Context, id uuid.UUID) (*model.Site, error) {
			if id == f.siteID {
				return &model.Site{ID: f.siteID, Name: "Grand Cinema", Address: "1 Main St", Contact: "ops@grand.example"}, nil
			}
			return nil, repository.ErrSiteNotFound
		},
	}
	f.projectors = &MockProjectorRepo{
		GetProjectorByIDFunc: func(ctx context.Context, id uuid.UUID) (*model.Projector, error) {
			if id == f.projectorID {
				return &model.Projector{ID: f.projectorID, SiteID: f.siteID, Model: "PT-RZ990", SerialNo: "BC-1000"}, nil
			}
			return nil, repository.ErrProjectorNotFound
		},
	}
	f.workers = &MockWorkerRepo{
		GetWorkerByIDFunc: func(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
			if id == f.workerID {
				return &model.Worker{ID: f.workerID, Name: "Dana Reyes", Email: "dana@example.com", Role: model.RoleFieldWorker}, nil
			}
			return nil, repository.ErrWorkerNotFound
		},
	}
	f.visits = &MockVisitRepo{}
	return f
}

func (f *visitFixture) service() *VisitService {
	return NewVisitService(
		f.visits, f.projectors, f.sites, f.workers, f.notifier,
		clock.NewFixed(serviceNow),
		log.New(&bytes.Buffer{}, "", 0),
	)
}

func (f *visitFixture) scheduleInput() ScheduleVisitInput {
	return ScheduleVisitInput{
		SiteID:      f.siteID,
		ProjectorID: f.projectorID,
		WorkerID:    f.workerID,
		Date:        "2025-07-01",
	}
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestScheduleVisit_Success(t *testing.T) {
	f := newVisitFixture()
	var created model.ServiceVisit
	f.visits.CreateVisitFunc = func(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
		visit.ServiceNumber = 1
		created = visit
		return &visit, nil
	}

	view, err := f.service().ScheduleVisit(context.Background(), f.admin, f.scheduleInput())

	require.NoError(t, err)
	assert.Equal(t, status.VisitScheduled, view.Status)
	assert.Equal(t, 1, view.ServiceNumber)
	assert.Equal(t, f.admin.ID, created.AssignerID)
	require.NotNil(t, created.WorkerID)
	assert.Equal(t, f.workerID, *created.WorkerID)

	// Site contact snapshot copied for point-in-time record keeping
	assert.Equal(t, "Grand Cinema", created.SiteName)
	assert.Equal(t, "1 Main St", created.SiteAddress)
	assert.Equal(t, "ops@grand.example", created.SiteContact)

	select {
	case n := <-f.notifier.Sent:
		assert.Equal(t, NotificationTypeVisitScheduled, n.Type)
		assert.Equal(t, "dana@example.com", n.WorkerEmail)
		assert.Equal(t, "ops@grand.example", n.SiteContact)
	case <-time.After(time.Second):
		t.Fatal("Expected a scheduled notification")
	}
}

func TestScheduleVisit_NonAdminRejected(t *testing.T) {
	f := newVisitFixture()

	_, err := f.service().ScheduleVisit(context.Background(), f.fieldWorker, f.scheduleInput())

	assertCode(t, err, apperrors.ErrorCodeUnauthorized)
}

func TestScheduleVisit_NoAdminConfigured(t *testing.T) {
	f := newVisitFixture()

	_, err := f.service().ScheduleVisit(context.Background(), model.Actor{Role: model.RoleAdmin}, f.scheduleInput())

	assertCode(t, err, apperrors.ErrorCodePreconditionFailed)
}

func TestScheduleVisit_BadDate(t *testing.T) {
	f := newVisitFixture()
	input := f.scheduleInput()
	input.Date = "first of July"

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, input)

	assertCode(t, err, apperrors.ErrorCodeValidation)
}

func TestScheduleVisit_SiteMissing(t *testing.T) {
	f := newVisitFixture()
	input := f.scheduleInput()
	input.SiteID = uuid.New()

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, input)

	assertCode(t, err, apperrors.ErrorCodeNotFound)
}

func TestScheduleVisit_ProjectorNotAtSite(t *testing.T) {
	f := newVisitFixture()
	f.projectors.GetProjectorByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.Projector, error) {
		return &model.Projector{ID: id, SiteID: uuid.New(), Model: "PT-RZ990", SerialNo: "BC-1000"}, nil
	}

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, f.scheduleInput())

	assertCode(t, err, apperrors.ErrorCodeValidation)
}

func TestScheduleVisit_AdminWorkerRejected(t *testing.T) {
	f := newVisitFixture()
	f.workers.GetWorkerByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.Worker, error) {
		return &model.Worker{ID: id, Name: "Sam Admin", Role: model.RoleAdmin}, nil
	}

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, f.scheduleInput())

	assertCode(t, err, apperrors.ErrorCodeNotFound)
}

func TestScheduleVisit_ServiceNumberConflictSurfacesAsConflict(t *testing.T) {
	f := newVisitFixture()
	f.visits.CreateVisitFunc = func(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
		return nil, repository.ErrServiceNumberConflict
	}

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, f.scheduleInput())

	assertCode(t, err, apperrors.ErrorCodeConflict)
}

func TestScheduleVisit_StoreFailureIsRetryable(t *testing.T) {
	f := newVisitFixture()
	f.visits.CreateVisitFunc = func(ctx context.Context, visit model.ServiceVisit) (*model.ServiceVisit, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.service().ScheduleVisit(context.Background(), f.admin, f.scheduleInput())

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.Retryable())
}

func TestUnassignVisit_StatusRevertsToPending(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	workerID := f.workerID
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, WorkerID: &workerID, Date: serviceNow}, nil
	}

	view, err := f.service().UnassignVisit(context.Background(), f.admin, visitID)

	require.NoError(t, err)
	assert.Nil(t, view.WorkerID)
	assert.Equal(t, status.VisitPending, view.Status)
}

func TestUnassignVisit_NonAdminRejected(t *testing.T) {
	f := newVisitFixture()

	_, err := f.service().UnassignVisit(context.Background(), f.fieldWorker, uuid.New())

	assertCode(t, err, apperrors.ErrorCodeUnauthorized)
}

func TestUnassignVisit_NotFound(t *testing.T) {
	f := newVisitFixture()

	_, err := f.service().UnassignVisit(context.Background(), f.admin, uuid.New())

	assertCode(t, err, apperrors.ErrorCodeNotFound)
}

func TestStartVisit_SetsStartTimeFromClock(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	workerID := f.workerID
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, WorkerID: &workerID, Date: serviceNow}, nil
	}

	var recorded time.Time
	f.visits.SetStartTimeFunc = func(ctx context.Context, id uuid.UUID, startTime time.Time) error {
		recorded = startTime
		return nil
	}

	view, err := f.service().StartVisit(context.Background(), f.fieldWorker, visitID)

	require.NoError(t, err)
	assert.True(t, recorded.Equal(serviceNow))
	assert.Equal(t, status.VisitInProgress, view.Status)
}

func TestStartVisit_CompletedVisitRejected(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	end := serviceNow.Add(-time.Hour)
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, EndTime: &end}, nil
	}

	_, err := f.service().StartVisit(context.Background(), f.fieldWorker, visitID)

	assertCode(t, err, apperrors.ErrorCodePreconditionFailed)
}

func TestCompleteVisit_Success(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	workerID := f.workerID
	start := serviceNow.Add(-2 * time.Hour)
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, WorkerID: &workerID, StartTime: &start, SiteName: "Grand Cinema"}, nil
	}

	hours := 1412.5
	view, err := f.service().CompleteVisit(context.Background(), f.fieldWorker, visitID, CompleteVisitInput{
		Remarks:      "lamp replaced",
		RunningHours: &hours,
	})

	require.NoError(t, err)
	assert.Equal(t, status.VisitCompleted, view.Status)
	require.NotNil(t, view.EndTime)
	assert.True(t, view.EndTime.Equal(serviceNow))

	select {
	case n := <-f.notifier.Sent:
		assert.Equal(t, NotificationTypeVisitCompleted, n.Type)
	case <-time.After(time.Second):
		t.Fatal("Expected a completed notification")
	}
}

func TestCompleteVisit_AlreadyCompletedRejected(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, ReportGenerated: true}, nil
	}

	_, err := f.service().CompleteVisit(context.Background(), f.fieldWorker, visitID, CompleteVisitInput{})

	assertCode(t, err, apperrors.ErrorCodePreconditionFailed)
}

func TestCompleteVisit_NegativeRunningHoursRejected(t *testing.T) {
	f := newVisitFixture()
	hours := -12.0

	_, err := f.service().CompleteVisit(context.Background(), f.fieldWorker, uuid.New(), CompleteVisitInput{
		RunningHours: &hours,
	})

	assertCode(t, err, apperrors.ErrorCodeValidation)
}

func TestMarkReportGenerated_DerivesCompletedWithoutEndTime(t *testing.T) {
	f := newVisitFixture()
	visitID := uuid.New()
	workerID := f.workerID
	f.visits.GetVisitByIDFunc = func(ctx context.Context, id uuid.UUID) (*model.ServiceVisit, error) {
		return &model.ServiceVisit{ID: visitID, WorkerID: &workerID}, nil
	}

	view, err := f.service().MarkReportGenerated(context.Background(), visitID)

	require.NoError(t, err)
	assert.True(t, view.ReportGenerated)
	assert.Nil(t, view.EndTime)
	assert.Equal(t, status.VisitCompleted, view.Status)
}

func TestListVisits_DerivesStatusPerVisit(t *testing.T) {
	f := newVisitFixture()
	workerID := f.workerID
	start := serviceNow.Add(-time.Hour)
	f.visits.GetAllVisitsPaginatedFunc = func(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedVisits, error) {
		return &repository.PaginatedVisits{
			Items: []model.ServiceVisit{
				{ID: uuid.New()},
				{ID: uuid.New(), WorkerID: &workerID},
				{ID: uuid.New(), WorkerID: &workerID, StartTime: &start},
				{ID: uuid.New(), ReportGenerated: true},
			},
			TotalCount: 4,
		}, nil
	}

	page, err := f.service().ListVisits(context.Background(), repository.PaginationParams{Limit: 10})

	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	assert.Equal(t, status.VisitPending, page.Items[0].Status)
	assert.Equal(t, status.VisitScheduled, page.Items[1].Status)
	assert.Equal(t, status.VisitInProgress, page.Items[2].Status)
	assert.Equal(t, status.VisitCompleted, page.Items[3].Status)
	assert.Equal(t, 4, page.TotalCount)
}
