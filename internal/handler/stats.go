package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"projector-maintenance-api/internal/aggregator"
	"projector-maintenance-api/internal/notification"
	"projector-maintenance-api/internal/reconciler"
	"projector-maintenance-api/pkg/validation"
)

// StatsProvider is the aggregation surface the stats handlers consume.
type StatsProvider interface {
	WorkerStats(ctx context.Context, workerID uuid.UUID) (*aggregator.WorkerStats, error)
	SiteStats(ctx context.Context, siteID uuid.UUID) (*aggregator.SiteStats, error)
	Activity(ctx context.Context, window aggregator.ActivityWindow, day time.Time) (*aggregator.ActivityReport, error)
	Worklist(ctx context.Context, query string) ([]aggregator.WorklistEntry, error)
}

// SweepRunner triggers one reconciliation sweep on demand.
type SweepRunner interface {
	Run(ctx context.Context) (reconciler.SweepResult, error)
}

// StatsHandler handles the HTTP requests for aggregated views, the
// on-demand reconcile trigger and the health endpoint.
type StatsHandler struct {
	Stats    StatsProvider
	Sweeper  SweepRunner
	Notifier notification.Notifier
	Logger   *log.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewStatsHandler creates a new StatsHandler with dependencies and helpers
func NewStatsHandler(stats StatsProvider, sweeper SweepRunner, notifier notification.Notifier, logger *log.Logger) *StatsHandler {
	if logger == nil {
		logger = log.Default()
	}

	return &StatsHandler{
		Stats:          stats,
		Sweeper:        sweeper,
		Notifier:       notifier,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// WorkerStatsHandler returns the per-worker visit statistics.
func (h *StatsHandler) WorkerStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	stats, err := h.Stats.WorkerStats(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "compute worker stats")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, stats)
}

// SiteStatsHandler returns the per-site completed visit count.
func (h *StatsHandler) SiteStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	stats, err := h.Stats.SiteStats(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "compute site stats")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, stats)
}

// ActivityHandler returns the time-windowed activity report. The window
// query parameter selects today, 7d, 30d or day; window=day also requires a
// date parameter.
func (h *StatsHandler) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	window, err := aggregator.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "parse activity window")
		return
	}

	var day time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		day, err = validation.ParseVisitDate(dateStr)
		if err != nil {
			h.ErrorHandler.HandleServiceError(w, err, "parse activity date")
			return
		}
	}

	report, err := h.Stats.Activity(ctx, window, day)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "compute activity report")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, report)
}

// WorklistHandler returns the scheduled-visits worklist, optionally
// filtered by the q search parameter.
func (h *StatsHandler) WorklistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	entries, err := h.Stats.Worklist(ctx, r.URL.Query().Get("q"))
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "build worklist")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreateListResponseData(entries, len(entries)))
}

// ReconcileHandler triggers one reconciliation sweep and reports the result.
func (h *StatsHandler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	// Sweeps touch every projector, so allow more than the default timeout.
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, 2*LongRunningTimeout)
	defer cancel()

	result, err := h.Sweeper.Run(ctx)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "run reconciliation sweep")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Reconciliation sweep completed", result)
}

// HealthHandler provides a health check endpoint
func (h *StatsHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := h.ResponseHelper.CreateHealthCheckData()

	if h.Notifier != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if h.Notifier.IsHealthy(ctx) {
			healthData["notifier"] = "healthy"
		} else {
			healthData["notifier"] = "degraded"
		}
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Service is healthy", healthData)
}
