// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/models"
	"github.com/wrenhall/railatlas/internal/remote"
	"github.com/wrenhall/railatlas/internal/routedetail"
	"github.com/wrenhall/railatlas/internal/store"
	syncer "github.com/wrenhall/railatlas/internal/sync"
)

// SyncService is the sync orchestrator surface the handlers call.
type SyncService interface {
	SyncSourceByID(ctx context.Context, sourceID string) error
	EnqueueSyncJob(ctx context.Context, sourceID, initiatedBy string) (*models.SyncJob, error)
	GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error)
	GetLatestActiveJob(ctx context.Context, sourceID string) (*models.SyncJob, error)
	ListRecentJobs(ctx context.Context, sourceID string, limit int) ([]models.SyncJob, error)
}

// RouteService assembles per-route read objects.
type RouteService interface {
	GetRouteDetail(ctx context.Context, routeID string, opts routedetail.Options) (*models.RouteDetail, error)
}

// OverviewService assembles the cross-source summary.
type OverviewService interface {
	GetOverview(ctx context.Context) (*models.Overview, error)
}

// StatusProvider reports per-source connection state.
type StatusProvider interface {
	Status(sourceID string) remote.Status
}

// Pinger is the store health surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers is the HTTP handler set, wired over the collaborating services.
type Handlers struct {
	cfg      *config.Config
	sync     SyncService
	routes   RouteService
	overview OverviewService
	status   StatusProvider
	health   Pinger
}

// NewHandlers creates the handler set.
func NewHandlers(cfg *config.Config, sync SyncService, routes RouteService, overview OverviewService, status StatusProvider, health Pinger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		sync:     sync,
		routes:   routes,
		overview: overview,
		status:   status,
		health:   health,
	}
}

// sourceView is a configured source with its live connection state. The
// shared key never leaves the process.
type sourceView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
}

func (h *Handlers) listSources(w http.ResponseWriter, r *http.Request) {
	views := make([]sourceView, 0, len(h.cfg.Sources))
	for _, src := range h.cfg.Sources {
		views = append(views, sourceView{
			ID:        src.ID,
			Name:      src.DisplayName(),
			Endpoint:  src.Endpoint,
			Enabled:   src.Enabled,
			Connected: h.status.Status(src.ID).Connected,
		})
	}
	respondData(w, http.StatusOK, views)
}

func (h *Handlers) enqueueSync(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	job, err := h.sync.EnqueueSyncJob(r.Context(), sourceID, "admin")
	if err != nil {
		if errors.Is(err, syncer.ErrUnknownSource) {
			respondError(w, http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to enqueue sync job")
		return
	}
	respondData(w, http.StatusAccepted, job)
}

func (h *Handlers) runSync(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	if err := h.sync.SyncSourceByID(r.Context(), sourceID); err != nil {
		if errors.Is(err, syncer.ErrUnknownSource) {
			respondError(w, http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, codeUnavailable, err.Error())
		return
	}
	respondData(w, http.StatusOK, map[string]string{"source_id": sourceID, "result": "synced"})
}

func (h *Handlers) getSyncJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.sync.GetSyncJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, codeNotFound, "sync job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load sync job")
		return
	}
	respondData(w, http.StatusOK, job)
}

func (h *Handlers) getActiveJob(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	job, err := h.sync.GetLatestActiveJob(r.Context(), sourceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to load active job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, codeNotFound, "no active sync job for source "+sourceID)
		return
	}
	respondData(w, http.StatusOK, job)
}

func (h *Handlers) listSyncJobs(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	jobs, err := h.sync.ListRecentJobs(r.Context(), sourceID, limit)
	if err != nil {
		if errors.Is(err, syncer.ErrUnknownSource) {
			respondError(w, http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to list sync jobs")
		return
	}
	respondData(w, http.StatusOK, jobs)
}

func (h *Handlers) getRouteDetail(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeID")
	opts := routedetail.Options{
		SourceID:  r.URL.Query().Get("source"),
		Dimension: r.URL.Query().Get("dimension"),
	}

	detail, err := h.routes.GetRouteDetail(r.Context(), routeID, opts)
	if err != nil {
		switch {
		case errors.Is(err, routedetail.ErrRouteNotFound),
			errors.Is(err, routedetail.ErrSourceNotFound):
			respondError(w, http.StatusNotFound, codeNotFound, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, codeInternal, "failed to assemble route detail")
		}
		return
	}
	respondData(w, http.StatusOK, detail)
}

func (h *Handlers) getOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overview.GetOverview(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternal, "failed to assemble overview")
		return
	}
	respondData(w, http.StatusOK, ov)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeUnavailable, "store unreachable")
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}
