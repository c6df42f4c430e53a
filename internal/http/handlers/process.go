package handlers

import "net/http"

// TriggerProcessing kicks a processing pass on the background worker. The
// kick is guaranteed to cause a pass, so a manual trigger always does real
// work rather than just acknowledging.
func (api *API) TriggerProcessing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if api.processor == nil {
		writeError(w, r, http.StatusServiceUnavailable, "worker_disabled", "report worker is not running")
		return
	}

	api.processor.Kick()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Report processor triggered",
		"status":  "accepted",
	})
}
