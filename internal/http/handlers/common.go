package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/http/middleware"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

// ProcessorKicker requests a processing pass from the background worker.
type ProcessorKicker interface {
	Kick()
}

type API struct {
	reports   *service.ReportsService
	processor ProcessorKicker
}

func NewAPI(reports *service.ReportsService, processor ProcessorKicker) *API {
	return &API{
		reports:   reports,
		processor: processor,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

func jsonRawOrNil(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		return string(value)
	}
	return decoded
}
