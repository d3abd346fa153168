package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"workscope/middleware"
	"workscope/models"
)

var exportHeader = []string{
	"Report ID",
	"Status",
	"Priority",
	"Worker",
	"Department",
	"Company",
	"Work Type",
	"Description",
	"Location",
	"Created At",
	"Completed At",
	"Resolution Notes",
	"Materials Used",
	"Evidence",
}

// Export streams the filtered reports of the requested view as CSV
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
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

	c := h.sessions.Get(admin.ID)
	filtered, err := h.service.Filtered(r.Context(), admin, c, state.View, state.Criteria)
	if err != nil {
		writeServiceError(w, h.log.WithField("admin", admin.ID), err)
		return
	}
	workers := c.Workers()
	companies := c.Companies()

	timestamp := h.service.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("reports_%s_%s.csv", state.View, timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportHeader); err != nil {
		h.log.WithError(err).Error("failed to write CSV header")
		return
	}

	for _, rep := range filtered {
		worker := rep.WorkerID
		if u, ok := workers[rep.WorkerID]; ok {
			worker = u.DisplayName()
		}
		company := rep.CompanyID
		if co, ok := companies[rep.CompanyID]; ok && co.Name != "" {
			company = co.Name
		}
		if err := writer.Write(exportRow(rep, worker, company)); err != nil {
			h.log.WithError(err).Error("failed to write CSV row")
			return
		}
	}

	h.log.WithFields(logrus.Fields{
		"admin": admin.ID,
		"view":  state.View,
		"rows":  len(filtered),
	}).Info("CSV export")
}

func exportRow(rep models.Report, worker, company string) []string {
	completed := ""
	if rep.CompletedAt != nil {
		completed = rep.CompletedAt.Format(time.RFC3339)
	}
	created := ""
	if !rep.CreatedAt.IsZero() {
		created = rep.CreatedAt.Format(time.RFC3339)
	}
	return []string{
		rep.ID,
		string(rep.Status),
		string(rep.Priority),
		worker,
		rep.Department,
		company,
		rep.WorkType,
		rep.Description,
		rep.Location,
		created,
		completed,
		rep.ResolutionNotes,
		rep.MaterialsUsed,
		strings.Join(rep.Evidence, " "),
	}
}
