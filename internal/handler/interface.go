package handler

import (
	"net/http"

	"projector-maintenance-api/internal/aggregator"
	"projector-maintenance-api/internal/reconciler"
	"projector-maintenance-api/internal/service"
)

// VisitHandlerInterface defines the contract for visit HTTP handlers.
// This interface enables easy testing, mocking, and dependency injection.
type VisitHandlerInterface interface {
	// Visit lifecycle operations
	ScheduleVisitHandler(w http.ResponseWriter, r *http.Request)
	ListVisitsHandler(w http.ResponseWriter, r *http.Request)
	GetVisitHandler(w http.ResponseWriter, r *http.Request)
	StartVisitHandler(w http.ResponseWriter, r *http.Request)
	CompleteVisitHandler(w http.ResponseWriter, r *http.Request)
	MarkReportGeneratedHandler(w http.ResponseWriter, r *http.Request)
	UnassignVisitHandler(w http.ResponseWriter, r *http.Request)
}

// CatalogHandlerInterface defines the contract for site and projector HTTP handlers.
type CatalogHandlerInterface interface {
	CreateSiteHandler(w http.ResponseWriter, r *http.Request)
	ListSitesHandler(w http.ResponseWriter, r *http.Request)
	UpdateSiteContactHandler(w http.ResponseWriter, r *http.Request)
	CreateProjectorHandler(w http.ResponseWriter, r *http.Request)
	ListProjectorsHandler(w http.ResponseWriter, r *http.Request)
}

// StatsHandlerInterface defines the contract for aggregation and operations handlers.
type StatsHandlerInterface interface {
	WorkerStatsHandler(w http.ResponseWriter, r *http.Request)
	SiteStatsHandler(w http.ResponseWriter, r *http.Request)
	ActivityHandler(w http.ResponseWriter, r *http.Request)
	WorklistHandler(w http.ResponseWriter, r *http.Request)
	ReconcileHandler(w http.ResponseWriter, r *http.Request)

	// Health and monitoring
	HealthHandler(w http.ResponseWriter, r *http.Request)
}

// Compile-time interface checks
var (
	_ VisitHandlerInterface   = (*VisitHandler)(nil)
	_ CatalogHandlerInterface = (*CatalogHandler)(nil)
	_ StatsHandlerInterface   = (*StatsHandler)(nil)

	_ VisitLifecycle = (*service.VisitService)(nil)
	_ Catalog        = (*service.CatalogService)(nil)
	_ StatsProvider  = (*aggregator.Aggregator)(nil)
	_ SweepRunner    = (*reconciler.Reconciler)(nil)
)
