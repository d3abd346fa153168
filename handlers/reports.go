package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"workscope/cache"
	"workscope/filter"
	"workscope/logger"
	"workscope/middleware"
	"workscope/models"
	"workscope/reports"
)

type ReportsHandler struct {
	service  *reports.Service
	sessions *cache.Registry
	pageSize int
	log      *logrus.Entry
}

func NewReportsHandler(service *reports.Service, sessions *cache.Registry, pageSize int) *ReportsHandler {
	return &ReportsHandler{
		service:  service,
		sessions: sessions,
		pageSize: pageSize,
		log:      logger.WithModule("handlers.reports"),
	}
}

// ListResponse is one page of the active view.
type ListResponse struct {
	View     models.View     `json:"view"`
	Criteria filter.Criteria `json:"criteria"`
	Page     filter.Page     `json:"page"`
	Partial  bool            `json:"partial"`
}

// List returns the requested page of the caller's visible reports
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	admin, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	state, err := stateFromQuery(r.URL.Query(), h.pageSize)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dash, err := h.service.Dashboard(r.Context(), admin, h.sessions.Get(admin.ID), state)
	if err != nil {
		writeServiceError(w, h.log.WithField("admin", admin.ID), err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		View:     dash.View,
		Criteria: dash.Criteria,
		Page:     dash.Page,
		Partial:  dash.Partial,
	})
}

// Stats returns statistics and chart datasets for the filtered reports
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	admin, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	state, err := stateFromQuery(r.URL.Query(), h.pageSize)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dash, err := h.service.Dashboard(r.Context(), admin, h.sessions.Get(admin.ID), state)
	if err != nil {
		writeServiceError(w, h.log.WithField("admin", admin.ID), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basic":   dash.Basic,
		"workers": dash.Workers,
		"charts":  dash.Charts,
		"options": dash.Options,
		"partial": dash.Partial,
	})
}

// Refresh drops the caller's cached reports so the next request refetches them
func (h *ReportsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	admin, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	h.service.Refresh(h.sessions.Get(admin.ID))
	h.log.WithField("admin", admin.ID).Debug("report cache cleared")

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Reports will be reloaded",
	})
}

// Workers returns the workers visible to the caller
func (h *ReportsHandler) Workers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	admin, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	workers, err := h.service.VisibleWorkers(r.Context(), admin, h.sessions.Get(admin.ID))
	if err != nil {
		writeServiceError(w, h.log.WithField("admin", admin.ID), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}
