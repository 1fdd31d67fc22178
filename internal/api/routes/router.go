package routes

import (
	"net/http"

	"github.com/careconnect/backend/internal/api/handlers"
	"github.com/careconnect/backend/internal/api/middleware"
	"github.com/careconnect/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	insightHandler *handlers.InsightHandler
	healthHandler  *handlers.HealthHandler
	sseHandler     *handlers.SSEHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when no event bus is configured.
func NewRouter(
	insightHandler *handlers.InsightHandler,
	healthHandler *handlers.HealthHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		insightHandler: insightHandler,
		healthHandler:  healthHandler,
		sseHandler:     sseHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Insight endpoints
	r.mux.HandleFunc("GET /api/patients/{id}/insights", r.insightHandler.GetPatientInsights)
	r.mux.HandleFunc("POST /api/patients/{id}/insights/refresh", r.insightHandler.RefreshPatientInsight)
	r.mux.HandleFunc("GET /api/insights/latest", r.insightHandler.ListLatestInsights)

	// Live insight updates
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/insights", r.sseHandler.StreamInsights)
		r.mux.HandleFunc("GET /api/stream/patients/{id}/insights", r.sseHandler.StreamPatientInsights)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = r.withRoutePattern(handler)

	// CORS wraps everything so preflight never reaches the mux
	handler = middleware.CORSMiddleware(handler)

	return handler
}

// withRoutePattern resolves the matching mux pattern before the mux runs so
// outer middleware can label spans and metrics by route.
func (r *Router) withRoutePattern(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Pattern == "" {
			if _, pattern := r.mux.Handler(req); pattern != "" {
				req.Pattern = pattern
			}
		}
		next.ServeHTTP(w, req)
	})
}
