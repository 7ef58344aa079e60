// Package aggregator computes the read-side views: per-worker and per-site
// statistics, time-windowed activity, and the scheduled worklist. Every
// visit-level count goes through internal/status at query time; the stored
// projector status is only used for projector-level listing, never for
// visit-level math.
package aggregator

import (
	"context"
	stderrors "errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/clock"
	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/status"
	"projector-maintenance-api/pkg/errors"
)

// staleness is how long an assigned visit may sit untouched before the
// activity view counts it as pending rather than in progress. This is a
// windowing policy distinct from the per-visit status derivation and is
// deliberately kept separate from it.
const staleness = 24 * time.Hour

// ActivityWindow selects the date range for the activity view.
type ActivityWindow string

const (
	WindowToday  ActivityWindow = "today"
	Window7Days  ActivityWindow = "7d"
	Window30Days ActivityWindow = "30d"
	WindowDay    ActivityWindow = "day"
)

// ParseWindow validates a window query parameter.
func ParseWindow(s string) (ActivityWindow, error) {
	switch ActivityWindow(s) {
	case WindowToday, Window7Days, Window30Days, WindowDay:
		return ActivityWindow(s), nil
	case "":
		return WindowToday, nil
	default:
		return "", errors.ValidationError("window must be one of: today, 7d, 30d, day")
	}
}

// WorkerStats summarizes one worker's assigned visits. Completed, Pending
// and InProgress partition the total with no overlap and no omission;
// Pending covers every visit that is neither completed nor in progress,
// which includes visits that merely carry the assignment.
type WorkerStats struct {
	WorkerID           uuid.UUID  `json:"workerId"`
	WorkerName         string     `json:"workerName"`
	TotalAssigned      int        `json:"totalAssigned"`
	Completed          int        `json:"completed"`
	Pending            int        `json:"pending"`
	InProgress         int        `json:"inProgress"`
	DistinctSites      int        `json:"distinctSites"`
	DistinctProjectors int        `json:"distinctProjectors"`
	LastCompletedAt    *time.Time `json:"lastCompletedAt,omitempty"`
}

// SiteStats summarizes completed service across all projectors at a site.
type SiteStats struct {
	SiteID          uuid.UUID `json:"siteId"`
	SiteName        string    `json:"siteName"`
	CompletedVisits int       `json:"completedVisits"`
}

// ActivityReport buckets the visits whose scheduled date falls inside the
// window. Pending here means assigned more than 24 hours ago and still not
// completed; a fresher visit counts as in progress even if untouched.
type ActivityReport struct {
	Window     ActivityWindow `json:"window"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Pending    int            `json:"pending"`
	InProgress int            `json:"inProgress"`
}

// WorklistEntry is one projector awaiting service together with its
// earliest open visit.
type WorklistEntry struct {
	Projector   model.Projector    `json:"projector"`
	SiteName    string             `json:"siteName"`
	SiteAddress string             `json:"siteAddress"`
	WorkerName  string             `json:"workerName,omitempty"`
	Visit       model.ServiceVisit `json:"visit"`
	VisitStatus status.VisitStatus `json:"visitStatus"`
}

// Aggregator computes read views over the visit history.
type Aggregator struct {
	visits     repository.VisitRepository
	projectors repository.ProjectorRepository
	sites      repository.SiteRepository
	workers    repository.WorkerRepository
	clk        clock.Clock
	logger     *log.Logger
}

// New creates an Aggregator.
func New(
	visits repository.VisitRepository,
	projectors repository.ProjectorRepository,
	sites repository.SiteRepository,
	workers repository.WorkerRepository,
	clk clock.Clock,
	logger *log.Logger,
) *Aggregator {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		visits:     visits,
		projectors: projectors,
		sites:      sites,
		workers:    workers,
		clk:        clk,
		logger:     logger,
	}
}

// WorkerStats computes the statistics for one worker's assigned visits.
func (a *Aggregator) WorkerStats(ctx context.Context, workerID uuid.UUID) (*WorkerStats, error) {
	worker, err := a.workers.GetWorkerByID(ctx, workerID)
	if err != nil {
		if stderrors.Is(err, repository.ErrWorkerNotFound) {
			return nil, errors.NotFoundError("worker")
		}
		return nil, errors.UnavailableError("failed to load worker", err)
	}

	visits, err := a.visits.GetVisitsByWorker(ctx, workerID)
	if err != nil {
		return nil, errors.UnavailableError("failed to load worker visits", err)
	}

	stats := WorkerStats{
		WorkerID:   worker.ID,
		WorkerName: worker.Name,
	}
	siteSet := make(map[uuid.UUID]struct{})
	projectorSet := make(map[uuid.UUID]struct{})

	for i := range visits {
		stats.TotalAssigned++
		siteSet[visits[i].SiteID] = struct{}{}
		projectorSet[visits[i].ProjectorID] = struct{}{}

		switch status.ForVisit(visits[i]) {
		case status.VisitCompleted:
			stats.Completed++
		case status.VisitInProgress:
			stats.InProgress++
		default:
			// scheduled and pending both count as not-yet-worked here
			stats.Pending++
		}
	}

	stats.DistinctSites = len(siteSet)
	stats.DistinctProjectors = len(projectorSet)
	if latest := status.LatestCompleted(visits); latest != nil {
		stats.LastCompletedAt = &latest.Date
	}

	return &stats, nil
}

// SiteStats counts completed visits across all projectors at a site.
func (a *Aggregator) SiteStats(ctx context.Context, siteID uuid.UUID) (*SiteStats, error) {
	site, err := a.sites.GetSiteByID(ctx, siteID)
	if err != nil {
		if stderrors.Is(err, repository.ErrSiteNotFound) {
			return nil, errors.NotFoundError("site")
		}
		return nil, errors.UnavailableError("failed to load site", err)
	}

	visits, err := a.visits.GetVisitsBySite(ctx, siteID)
	if err != nil {
		return nil, errors.UnavailableError("failed to load site visits", err)
	}

	stats := SiteStats{SiteID: site.ID, SiteName: site.Name}
	for i := range visits {
		if status.ForVisit(visits[i]) == status.VisitCompleted {
			stats.CompletedVisits++
		}
	}
	return &stats, nil
}

// Activity buckets visits scheduled inside the window. The day parameter is
// only consulted for WindowDay and must be non-zero there.
func (a *Aggregator) Activity(ctx context.Context, window ActivityWindow, day time.Time) (*ActivityReport, error) {
	now := a.clk.Now()

	from, to, err := windowBounds(window, day, now)
	if err != nil {
		return nil, err
	}

	visits, err := a.visits.GetVisitsByDateRange(ctx, from, to)
	if err != nil {
		return nil, errors.UnavailableError("failed to load visits for window", err)
	}

	report := ActivityReport{Window: window, From: from, To: to}
	for i := range visits {
		report.Total++
		switch {
		case status.ForVisit(visits[i]) == status.VisitCompleted:
			report.Completed++
		case now.Sub(visits[i].CreatedAt) > staleness:
			report.Pending++
		default:
			report.InProgress++
		}
	}
	return &report, nil
}

func windowBounds(window ActivityWindow, day, now time.Time) (time.Time, time.Time, error) {
	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}

	switch window {
	case WindowToday:
		from := startOfDay(now)
		return from, from.Add(24 * time.Hour), nil
	case Window7Days:
		to := startOfDay(now).Add(24 * time.Hour)
		return to.Add(-7 * 24 * time.Hour), to, nil
	case Window30Days:
		to := startOfDay(now).Add(24 * time.Hour)
		return to.Add(-30 * 24 * time.Hour), to, nil
	case WindowDay:
		if day.IsZero() {
			return time.Time{}, time.Time{}, errors.ValidationError("date is required for window=day")
		}
		from := startOfDay(day)
		return from, from.Add(24 * time.Hour), nil
	default:
		return time.Time{}, time.Time{}, errors.ValidationError("unknown activity window")
	}
}

// Worklist lists projectors whose stored status is scheduled, each joined
// with its earliest open visit. The query filters by case-insensitive
// substring over site name, address, projector model, serial number and the
// assigned worker's name. An empty query returns everything.
func (a *Aggregator) Worklist(ctx context.Context, query string) ([]WorklistEntry, error) {
	projectors, err := a.projectors.GetProjectorsByStatus(ctx, model.MaintenanceScheduled)
	if err != nil {
		return nil, errors.UnavailableError("failed to load scheduled projectors", err)
	}

	open, err := a.visits.GetOpenVisits(ctx)
	if err != nil {
		return nil, errors.UnavailableError("failed to load open visits", err)
	}

	// Open visits arrive ordered by date, so the first one seen per
	// projector is the earliest.
	earliest := make(map[uuid.UUID]model.ServiceVisit, len(open))
	for i := range open {
		if _, ok := earliest[open[i].ProjectorID]; !ok {
			earliest[open[i].ProjectorID] = open[i]
		}
	}

	siteNames := make(map[uuid.UUID]*model.Site)
	workerNames := make(map[uuid.UUID]string)
	needle := strings.ToLower(strings.TrimSpace(query))

	entries := make([]WorklistEntry, 0, len(projectors))
	for i := range projectors {
		visit, ok := earliest[projectors[i].ID]
		if !ok {
			// Stored status lagging behind the visit history; the
			// reconciler repairs it on the next sweep.
			a.logger.Printf("Worklist: projector %s marked scheduled but has no open visit",
				projectors[i].ID)
			continue
		}

		entry := WorklistEntry{
			Projector:   projectors[i],
			Visit:       visit,
			VisitStatus: status.ForVisit(visit),
			SiteName:    visit.SiteName,
			SiteAddress: visit.SiteAddress,
		}

		// Snapshot fields may predate a site contact update; prefer the
		// live record when it resolves.
		if site, err := a.lookupSite(ctx, siteNames, projectors[i].SiteID); err == nil && site != nil {
			entry.SiteName = site.Name
			entry.SiteAddress = site.Address
		}

		if visit.WorkerID != nil {
			name, err := a.lookupWorkerName(ctx, workerNames, *visit.WorkerID)
			if err != nil {
				return nil, err
			}
			entry.WorkerName = name
		}

		if needle != "" && !matchesWorklist(entry, needle) {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Visit.Date.Before(entries[j].Visit.Date)
	})
	return entries, nil
}

func (a *Aggregator) lookupSite(ctx context.Context, cache map[uuid.UUID]*model.Site, id uuid.UUID) (*model.Site, error) {
	if site, ok := cache[id]; ok {
		return site, nil
	}
	site, err := a.sites.GetSiteByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrSiteNotFound) {
			cache[id] = nil
			return nil, nil
		}
		return nil, errors.UnavailableError("failed to load site", err)
	}
	cache[id] = site
	return site, nil
}

func (a *Aggregator) lookupWorkerName(ctx context.Context, cache map[uuid.UUID]string, id uuid.UUID) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	worker, err := a.workers.GetWorkerByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrWorkerNotFound) {
			cache[id] = ""
			return "", nil
		}
		return "", errors.UnavailableError("failed to load worker", err)
	}
	cache[id] = worker.Name
	return worker.Name, nil
}

func matchesWorklist(entry WorklistEntry, needle string) bool {
	haystacks := []string{
		entry.SiteName,
		entry.SiteAddress,
		entry.Projector.Model,
		entry.Projector.SerialNo,
		entry.WorkerName,
	}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}
