package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"projector-maintenance-api/internal/middleware"
	"projector-maintenance-api/internal/model"
	"projector-maintenance-api/internal/repository"
	"projector-maintenance-api/internal/service"
)

// Constants for timeouts
const (
	DefaultTimeout     = 10 * time.Second
	LongRunningTimeout = 15 * time.Second
)

// Error response structure for consistent JSON error responses
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Success response structure for consistent JSON success responses
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// VisitLifecycle is the service surface the visit handlers consume.
type VisitLifecycle interface {
	ScheduleVisit(ctx context.Context, actor model.Actor, input service.ScheduleVisitInput) (*service.VisitView, error)
	UnassignVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*service.VisitView, error)
	StartVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID) (*service.VisitView, error)
	CompleteVisit(ctx context.Context, actor model.Actor, visitID uuid.UUID, input service.CompleteVisitInput) (*service.VisitView, error)
	MarkReportGenerated(ctx context.Context, visitID uuid.UUID) (*service.VisitView, error)
	GetVisit(ctx context.Context, visitID uuid.UUID) (*service.VisitView, error)
	ListVisits(ctx context.Context, params repository.PaginationParams) (*service.VisitPage, error)
}

// VisitHandler handles the HTTP requests for service visits.
type VisitHandler struct {
	Service VisitLifecycle
	Logger  *log.Logger

	// Helper components for cleaner code organization
	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewVisitHandler creates a new VisitHandler with dependencies and helpers
func NewVisitHandler(svc VisitLifecycle, logger *log.Logger) *VisitHandler {
	if logger == nil {
		logger = log.Default()
	}

	return &VisitHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// ScheduleVisitHandler handles the scheduling of a new service visit.
func (h *VisitHandler) ScheduleVisitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var input service.ScheduleVisitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	visit, err := h.Service.ScheduleVisit(ctx, actor, input)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "schedule visit")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Visit scheduled successfully", visit)
}

// ListVisitsHandler handles the retrieval of all visits with pagination.
// Each returned visit carries its derived status.
func (h *VisitHandler) ListVisitsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	paginationParams := h.ResponseHelper.ParsePaginationParams(r)

	page, err := h.Service.ListVisits(ctx, repository.PaginationParams{
		Offset: paginationParams.Offset,
		Limit:  paginationParams.Limit,
	})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "list visits")
		return
	}

	paginationMeta := h.ResponseHelper.CalculatePaginationMeta(paginationParams, page.TotalCount)

	responseData := h.ResponseHelper.CreatePaginatedListResponseData(page.Items, paginationMeta, map[string]interface{}{
		"visits": page.Items,
	})
	delete(responseData, "items") // Remove generic "items" key since we have "visits"

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, responseData)
}

// GetVisitHandler handles the retrieval of a single visit by ID.
func (h *VisitHandler) GetVisitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	visit, err := h.Service.GetVisit(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve visit")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, visit)
}

// StartVisitHandler records the moment a field worker begins a visit.
func (h *VisitHandler) StartVisitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	visit, err := h.Service.StartVisit(ctx, actor, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "start visit")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Visit started successfully", visit)
}

// CompleteVisitHandler records the completion of a visit.
func (h *VisitHandler) CompleteVisitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	var input service.CompleteVisitInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			h.ErrorHandler.HandleJSONDecodeError(w, err)
			return
		}
	}

	actor := middleware.ActorFromContext(r.Context())
	visit, err := h.Service.CompleteVisit(ctx, actor, id, input)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "complete visit")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Visit completed successfully", visit)
}

// MarkReportGeneratedHandler is the entry point for the report-generation
// collaborator. It only flips the flag; the report document itself lives
// elsewhere.
func (h *VisitHandler) MarkReportGeneratedHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	visit, err := h.Service.MarkReportGenerated(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "mark report generated")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Report marked as generated", visit)
}

// UnassignVisitHandler clears the assigned worker from a visit.
func (h *VisitHandler) UnassignVisitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	visit, err := h.Service.UnassignVisit(ctx, actor, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "unassign visit")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Worker unassigned from visit", visit)
}
