package router

import (
	"github.com/gorilla/mux"

	"projector-maintenance-api/internal/config"
	"projector-maintenance-api/internal/handler"
	"projector-maintenance-api/internal/middleware"
)

// NewRouter creates a new router and sets up the routes with security middleware.
func NewRouter(
	visits handler.VisitHandlerInterface,
	catalog handler.CatalogHandlerInterface,
	stats handler.StatsHandlerInterface,
	cfg *config.Config,
) *mux.Router {
	r := mux.NewRouter()

	// Initialize security middleware
	securityMW := middleware.NewSecurityMiddleware(&cfg.Security)
	actorMW := middleware.NewActorMiddleware()

	// Apply global middleware in order
	r.Use(securityMW.SecurityHeaders)
	r.Use(securityMW.CORS)
	r.Use(securityMW.TrustedProxy)
	r.Use(securityMW.RateLimit)
	r.Use(securityMW.RequestTimeout)
	r.Use(actorMW.ResolveActor)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Visit lifecycle operations
	api.HandleFunc("/visits", visits.ScheduleVisitHandler).Methods("POST")
	api.HandleFunc("/visits", visits.ListVisitsHandler).Methods("GET")
	api.HandleFunc("/visits/{id}", visits.GetVisitHandler).Methods("GET")
	api.HandleFunc("/visits/{id}/start", visits.StartVisitHandler).Methods("POST")
	api.HandleFunc("/visits/{id}/complete", visits.CompleteVisitHandler).Methods("POST")
	api.HandleFunc("/visits/{id}/report", visits.MarkReportGeneratedHandler).Methods("POST")
	api.HandleFunc("/visits/{id}/worker", visits.UnassignVisitHandler).Methods("DELETE")

	// Site and projector catalog
	api.HandleFunc("/sites", catalog.CreateSiteHandler).Methods("POST")
	api.HandleFunc("/sites", catalog.ListSitesHandler).Methods("GET")
	api.HandleFunc("/sites/{id}/contact", catalog.UpdateSiteContactHandler).Methods("PUT")
	api.HandleFunc("/projectors", catalog.CreateProjectorHandler).Methods("POST")
	api.HandleFunc("/projectors", catalog.ListProjectorsHandler).Methods("GET")

	// Aggregated views
	api.HandleFunc("/workers/{id}/stats", stats.WorkerStatsHandler).Methods("GET")
	api.HandleFunc("/sites/{id}/stats", stats.SiteStatsHandler).Methods("GET")
	api.HandleFunc("/stats/activity", stats.ActivityHandler).Methods("GET")
	api.HandleFunc("/worklist", stats.WorklistHandler).Methods("GET")

	// Operations
	api.HandleFunc("/reconcile", stats.ReconcileHandler).Methods("POST")

	// Health check
	api.HandleFunc("/health", stats.HealthHandler).Methods("GET")

	return r
}
