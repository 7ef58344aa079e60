package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/clock"
	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/status"
	apperrors "projector-maintenance-api/pkg/errors"
	"projector-maintenance-api/pkg/validation"
)

// NotificationService interface for sending notifications
type NotificationService interface {
	SendVisitNotification(ctx context.Context, notification VisitNotification) error
}

// VisitNotification represents a notification about visit lifecycle events.
// It carries the worker and site contact fields so an external mailer can
// compose a message; the engine never sends mail itself.
type VisitNotification struct {
	Type          NotificationType
	VisitID       uuid.UUID
	ServiceNumber int
	WorkerName    string
	WorkerEmail   string
	SiteName      string
	SiteContact   string
	Message       string
	Metadata      map[string]string
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeVisitScheduled  NotificationType = "visit_scheduled"
	NotificationTypeVisitCompleted  NotificationType = "visit_completed"
	NotificationTypeVisitUnassigned NotificationType = "visit_unassigned"
)

// VisitView is a visit together with its derived status, recomputed on read.
type VisitView struct {
	model.ServiceVisit
	Status status.VisitStatus `json:"status"`
}

// VisitPage is one page of visit views plus the total count.
type VisitPage struct {
	Items      []VisitView
	TotalCount int
}

// ScheduleVisitInput carries the caller-supplied fields for scheduling.
type ScheduleVisitInput struct {
	SiteID      uuid.UUID `json:"site_id"`
	ProjectorID uuid.UUID `json:"projector_id"`
	WorkerID    uuid.UUID `json:"worker_id"`
	Date        string    `json:"date"`
	Remarks     string    `json:"remarks,omitempty"`
}

// CompleteVisitInput carries the worker's completion payload.
type CompleteVisitInput struct {
	Remarks      string   `json:"remarks,omitempty"`
	RunningHours *float64 `json:"running_hours,omitempty"`
}

// VisitService handles the visit lifecycle: scheduling, start/complete
// transitions, unassignment and the report-generated flag.
type VisitService struct {
	visits     repository.VisitRepository
	projectors repository.ProjectorRepository
	sites      repository.SiteRepository
	workers    repository.WorkerRepository
	notifier   NotificationService
	clk        clock.Clock
	logger     *log.Logger
}

// NewVisitService creates a new VisitService.
func NewVisitService(
	visits repository.VisitRepository,
	projectors repository.ProjectorRepository,
	sites repository.SiteRepository,
	workers repository.WorkerRepository,
	notifier NotificationService,
	clk clock.Clock,
	logger *log.Logger,
) *VisitService {
	if logger == nil {
		logger = log.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &VisitService{
		visits:     visits,
		projectors: projectors,
		sites:      sites,
		workers:    workers,
		notifier:   notifier,
		clk:        clk,
		logger:     logger,
	}
}

// ScheduleVisit creates a visit linking a projector, its site, the assigning
// admin and the assigned field worker. The created visit's derived status is
// scheduled. The caller supplies the admin actor explicitly; there is no
// implicit admin lookup.
func (s *VisitService) ScheduleVisit(ctx context.Context, actor model.Actor, input ScheduleVisitInput) (*VisitView, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.UnauthorizedError("schedule visits")
	}
	if actor.ID == uuid.Nil {
		return nil, apperrors.PreconditionFailedError("no admin actor configured for scheduling")
	}

	date, err := validation.ParseVisitDate(input.Date)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	if err := validation.ValidateRemarks(input.Remarks); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	site, err := s.sites.GetSiteByID(ctx, input.SiteID)
	if err != nil {
		if errors.Is(err, repository.ErrSiteNotFound) {
			return nil, apperrors.NotFoundError("site")
		}
		return nil, apperrors.UnavailableError("failed to load site", err)
	}

	projector, err := s.projectors.GetProjectorByID(ctx, input.ProjectorID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectorNotFound) {
			return nil, apperrors.NotFoundError("projector")
		}
		return nil, apperrors.UnavailableError("failed to load projector", err)
	}
	if projector.SiteID != site.ID {
		return nil, apperrors.ValidationError("projector does not belong to the given site").
			WithDetail("projector_site_id", projector.SiteID.String())
	}

	worker, err := s.workers.GetWorkerByID(ctx, input.WorkerID)
	if err != nil {
		if errors.Is(err, repository.ErrWorkerNotFound) {
			return nil, apperrors.NotFoundError("worker")
		}
		return nil, apperrors.UnavailableError("failed to load worker", err)
	}
	if worker.Role != model.RoleFieldWorker {
		return nil, apperrors.NotFoundError("field worker")
	}

	workerID := worker.ID
	visit := model.ServiceVisit{
		ID:          uuid.New(),
		ProjectorID: projector.ID,
		SiteID:      site.ID,
		AssignerID:  actor.ID,
		WorkerID:    &workerID,
		Date:        date,
		Remarks:     input.Remarks,
		// Point-in-time record: later site edits must not rewrite history.
		SiteName:    site.Name,
		SiteAddress: site.Address,
		SiteContact: site.Contact,
	}

	created, err := s.visits.CreateVisit(ctx, visit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrServiceNumberConflict):
			return nil, apperrors.ConflictError("concurrent scheduling allocated the same service number, retry")
		case errors.Is(err, repository.ErrVisitReferencesMissing):
			return nil, apperrors.NotFoundError("visit reference")
		default:
			return nil, apperrors.UnavailableError("failed to create visit", err)
		}
	}

	go s.sendScheduledNotification(*created, *worker)

	s.logger.Printf("Visit scheduled: ID=%s, projector=%s, serviceNumber=%d, worker=%s",
		created.ID, created.ProjectorID, created.ServiceNumber, worker.Email)

	return &VisitView{ServiceVisit: *created, Status: status.ForVisit(*created)}, nil
}

// UnassignVisit clears the assigned worker from a visit. The visit's derived
// status reverts to pending.
func (s *VisitService) UnassignVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*VisitView, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.UnauthorizedError("unassign visits")
	}

	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if err := s.visits.UnassignWorker(ctx, visit.ID); err != nil {
		if errors.Is(err, repository.ErrVisitNotFound) {
			return nil, apperrors.NotFoundError("visit")
		}
		return nil, apperrors.UnavailableError("failed to unassign visit", err)
	}

	visit.WorkerID = nil

	s.logger.Printf("Visit unassigned: ID=%s", visit.ID)

	return &VisitView{ServiceVisit: *visit, Status: status.ForVisit(*visit)}, nil
}

// StartVisit records that the field worker began the visit.
func (s *VisitService) StartVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*VisitView, error) {
	if !actor.IsFieldWorker() {
		return nil, apperrors.UnauthorizedError("start visits")
	}

	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if status.ForVisit(*visit) == status.VisitCompleted {
		return nil, apperrors.PreconditionFailedError("visit is already completed")
	}

	startTime := s.clk.Now()
	if err := s.visits.SetStartTime(ctx, visit.ID, startTime); err != nil {
		if errors.Is(err, repository.ErrVisitNotFound) {
			return nil, apperrors.NotFoundError("visit")
		}
		return nil, apperrors.UnavailableError("failed to start visit", err)
	}

	visit.StartTime = &startTime

	s.logger.Printf("Visit started: ID=%s", visit.ID)

	return &VisitView{ServiceVisit: *visit, Status: status.ForVisit(*visit)}, nil
}

// CompleteVisit records the end of the visit with the worker's remarks and
// the projector's running-hours reading.
func (s *VisitService) CompleteVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID, input CompleteVisitInput) (*VisitView, error) {
	if !actor.IsFieldWorker() {
		return nil, apperrors.UnauthorizedError("complete visits")
	}

	if err := validation.ValidateRemarks(input.Remarks); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	if err := validation.ValidateRunningHours(input.RunningHours); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if status.ForVisit(*visit) == status.VisitCompleted {
		return nil, apperrors.PreconditionFailedError("visit is already completed")
	}

	endTime := s.clk.Now()
	if err := s.visits.CompleteVisit(ctx, visit.ID, endTime, input.Remarks, input.RunningHours); err != nil {
		if errors.Is(err, repository.ErrVisitNotFound) {
			return nil, apperrors.NotFoundError("visit")
		}
		return nil, apperrors.UnavailableError("failed to complete visit", err)
	}

	visit.EndTime = &endTime
	visit.Remarks = input.Remarks
	visit.RunningHours = input.RunningHours

	go s.sendCompletedNotification(*visit)

	s.logger.Printf("Visit completed: ID=%s, serviceNumber=%d", visit.ID, visit.ServiceNumber)

	return &VisitView{ServiceVisit: *visit, Status: status.ForVisit(*visit)}, nil
}

// MarkReportGenerated sets the flag consumed by status derivation. Called by
// the external report-generation collaborator; the engine does not render or
// store the report document.
func (s *VisitService) MarkReportGenerated(ctx context.Context, visitID uuid.UUID) (*VisitView, error) {
	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	if err := s.visits.MarkReportGenerated(ctx, visit.ID); err != nil {
		if errors.Is(err, repository.ErrVisitNotFound) {
			return nil, apperrors.NotFoundError("visit")
		}
		return nil, apperrors.UnavailableError("failed to mark report generated", err)
	}

	visit.ReportGenerated = true

	s.logger.Printf("Visit report marked generated: ID=%s", visit.ID)

	return &VisitView{ServiceVisit: *visit, Status: status.ForVisit(*visit)}, nil
}

// GetVisit retrieves a visit with its derived status.
func (s *VisitService) GetVisit(ctx context.Context, visitID uuid.UUID) (*VisitView, error) {
	visit, err := s.getVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return &VisitView{ServiceVisit: *visit, Status: status.ForVisit(*visit)}, nil
}

// ListVisits retrieves a page of visits, each with its derived status.
func (s *VisitService) ListVisits(ctx context.Context, params repository.PaginationParams) (*VisitPage, error) {
	result, err := s.visits.GetAllVisitsPaginated(ctx, params)
	if err != nil {
		return nil, apperrors.UnavailableError("failed to list visits", err)
	}

	views := make([]VisitView, 0, len(result.Items))
	for _, v := range result.Items {
		views = append(views, VisitView{ServiceVisit: v, Status: status.ForVisit(v)})
	}

	return &VisitPage{Items: views, TotalCount: result.TotalCount}, nil
}

func (s *VisitService) getVisit(ctx context.Context, visitID uuid.UUID) (*model.ServiceVisit, error) {
	visit, err := s.visits.GetVisitByID(ctx, visitID)
	if err != nil {
		if errors.Is(err, repository.ErrVisitNotFound) {
			return nil, apperrors.NotFoundError("visit")
		}
		return nil, apperrors.UnavailableError("failed to load visit", err)
	}
	return visit, nil
}

// Notification methods

func (s *VisitService) sendScheduledNotification(visit model.ServiceVisit, worker model.Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notification := VisitNotification{
		Type:          NotificationTypeVisitScheduled,
		VisitID:       visit.ID,
		ServiceNumber: visit.ServiceNumber,
		WorkerName:    worker.Name,
		WorkerEmail:   worker.Email,
		SiteName:      visit.SiteName,
		SiteContact:   visit.SiteContact,
		Message: fmt.Sprintf("Service visit #%d at %s scheduled for %s, assigned to %s",
			visit.ServiceNumber, visit.SiteName, visit.Date.Format("2006-01-02"), worker.Name),
		Metadata: map[string]string{
			"projector_id": visit.ProjectorID.String(),
			"visit_date":   visit.Date.Format(time.RFC3339),
		},
	}

	if err := s.notifier.SendVisitNotification(ctx, notification); err != nil {
		s.logger.Printf("Failed to send scheduled notification for visit %s: %v", visit.ID, err)
	}
}

func (s *VisitService) sendCompletedNotification(visit model.ServiceVisit) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var workerName, workerEmail string
	if visit.WorkerID != nil {
		if worker, err := s.workers.GetWorkerByID(ctx, *visit.WorkerID); err == nil {
			workerName = worker.Name
			workerEmail = worker.Email
		}
	}

	notification := VisitNotification{
		Type:          NotificationTypeVisitCompleted,
		VisitID:       visit.ID,
		ServiceNumber: visit.ServiceNumber,
		WorkerName:    workerName,
		WorkerEmail:   workerEmail,
		SiteName:      visit.SiteName,
		SiteContact:   visit.SiteContact,
		Message: fmt.Sprintf("Service visit #%d at %s completed",
			visit.ServiceNumber, visit.SiteName),
		Metadata: map[string]string{
			"projector_id": visit.ProjectorID.String(),
		},
	}

	if err := s.notifier.SendVisitNotification(ctx, notification); err != nil {
		s.logger.Printf("Failed to send completed notification for visit %s: %v", visit.ID, err)
	}
}
