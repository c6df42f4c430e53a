package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/service"
)

type submitRequest struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	UserID string          `json:"userId,omitempty"`
}

// SubmitReport queues a new report job and returns its id immediately.
func (api *API) SubmitReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request submitRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	job, err := api.reports.Submit(r.Context(), service.SubmitInput{
		Type:   request.Type,
		Data:   request.Data,
		UserID: request.UserID,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "type and data are required")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to queue report")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reportId": job.ID,
		"status":   string(job.Status),
		"message":  "Report generation has been queued",
	})
}

// ReportHistory lists a user's past reports, newest first.
func (api *API) ReportHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("userId"))
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "userId parameter is required")
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	includeProcessing := query.Get("includeProcessing") == "true"

	history, err := api.reports.ListHistory(r.Context(), userID, limit, includeProcessing)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list reports")
		return
	}

	entries := make([]map[string]any, 0, len(history.Reports))
	for _, entry := range history.Reports {
		entries = append(entries, historyEntryPayload(entry))
	}

	var mostRecent any
	if history.MostRecentCompleted != nil {
		mostRecent = historyEntryPayload(*history.MostRecentCompleted)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports":             entries,
		"mostRecentCompleted": mostRecent,
		"hasCompletedReports": history.HasCompletedReports,
		"totalCount":          history.TotalCount,
	})
}

func historyEntryPayload(entry service.HistoryEntry) map[string]any {
	payload := map[string]any{
		"reportId":  entry.ReportID,
		"type":      string(entry.Type),
		"status":    string(entry.Status),
		"createdAt": entry.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": entry.UpdatedAt.Format(time.RFC3339Nano),
	}
	if entry.CompletedAt != nil {
		payload["completedAt"] = entry.CompletedAt.Format(time.RFC3339Nano)
	}
	if entry.Website != nil {
		payload["website"] = map[string]any{
			"id":   entry.Website.ID,
			"name": entry.Website.Name,
		}
	}
	if entry.TimePeriod != nil {
		payload["timePeriod"] = map[string]any{
			"year":      entry.TimePeriod.Year,
			"month":     entry.TimePeriod.Month,
			"monthName": entry.TimePeriod.CurrentMonthName,
		}
	}
	if len(entry.Report) > 0 {
		payload["report"] = jsonRawOrNil(entry.Report)
	}
	return payload
}
