package httpserver

import (
	"log"
	"net/http"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/http/handlers"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/reports", deps.API.SubmitReport)
	mux.HandleFunc("/v1/reports/status", deps.API.ReportStatus)
	mux.HandleFunc("/v1/reports/history", deps.API.ReportHistory)
	mux.HandleFunc("/v1/reports/process", deps.API.TriggerProcessing)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(deps.CORSOrigins)(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
