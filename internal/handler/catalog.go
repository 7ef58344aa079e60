package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"projector-maintenance-api/internal/middleware"
	"projector-maintenance-api/internal/model"
)

// Catalog is the service surface the site and projector handlers consume.
type Catalog interface {
	CreateSite(ctx context.Context, actor model.Actor, site model.Site) (*model.Site, error)
	ListSites(ctx context.Context) ([]model.Site, error)
	UpdateSiteContact(ctx context.Context, actor model.Actor, siteID uuid.UUID, contact string) error
	CreateProjector(ctx context.Context, actor model.Actor, projector model.Projector) (*model.Projector, error)
	ListProjectors(ctx context.Context) ([]model.Projector, error)
}

// CatalogHandler handles the HTTP requests for sites and projectors.
type CatalogHandler struct {
	Service Catalog
	Logger  *log.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewCatalogHandler creates a new CatalogHandler with dependencies and helpers
func NewCatalogHandler(svc Catalog, logger *log.Logger) *CatalogHandler {
	if logger == nil {
		logger = log.Default()
	}

	return &CatalogHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// CreateSiteHandler handles the creation of a new site.
func (h *CatalogHandler) CreateSiteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var site model.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	created, err := h.Service.CreateSite(ctx, actor, site)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create site")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Site created successfully", created)
}

// ListSitesHandler handles the retrieval of all sites.
func (h *CatalogHandler) ListSitesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	sites, err := h.Service.ListSites(ctx)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "list sites")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreateListResponseData(sites, len(sites)))
}

// UpdateSiteContactHandler handles updating a site's contact details.
// Contact fields are the only mutable part of a site.
func (h *CatalogHandler) UpdateSiteContactHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	vars := mux.Vars(r)
	id, valid := h.ErrorHandler.ParseAndValidateUUID(w, vars["id"])
	if !valid {
		return
	}

	var payload struct {
		Contact string `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if err := h.Service.UpdateSiteContact(ctx, actor, id, payload.Contact); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update site contact")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Site contact updated successfully", map[string]interface{}{
		"id":      id.String(),
		"contact": payload.Contact,
	})
}

// CreateProjectorHandler handles the creation of a new projector.
func (h *CatalogHandler) CreateProjectorHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var projector model.Projector
	if err := json.NewDecoder(r.Body).Decode(&projector); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	created, err := h.Service.CreateProjector(ctx, actor, projector)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create projector")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Projector created successfully", created)
}

// ListProjectorsHandler handles the retrieval of all projectors.
func (h *CatalogHandler) ListProjectorsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	projectors, err := h.Service.ListProjectors(ctx)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "list projectors")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreateListResponseData(projectors, len(projectors)))
}
