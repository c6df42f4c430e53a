package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/store"
)

// ReportStatus returns a job's current state. The id is taken from the
// query string on GET or from the body on POST, matching the clients the
// dashboard ships with. The result body is included only for completed
// jobs and the error only for failed ones.
func (api *API) ReportStatus(w http.ResponseWriter, r *http.Request) {
	var reportID string
	switch r.Method {
	case http.MethodGet:
		reportID = r.URL.Query().Get("reportId")
	case http.MethodPost:
		var request struct {
			ReportID string `json:"reportId"`
		}
		if err := decodeJSON(r, &request); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
			return
		}
		reportID = request.ReportID
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "reportId is required")
		return
	}

	job, err := api.reports.GetStatus(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "report not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load report")
		return
	}

	response := map[string]any{
		"reportId":  job.ID,
		"status":    string(job.Status),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if job.Status == domain.JobStatusCompleted {
		response["result"] = jsonRawOrNil(job.Result)
		if job.CompletedAt != nil {
			response["completedAt"] = job.CompletedAt.Format(time.RFC3339Nano)
		}
	}
	if job.Status == domain.JobStatusFailed {
		response["error"] = job.Error
	}

	writeJSON(w, http.StatusOK, response)
}
