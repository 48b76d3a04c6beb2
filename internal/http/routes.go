package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// NewRouter wires the handler into a mux router. Rate limiting and the
// request timeout apply to /api only; /health and /metrics stay reachable
// under load.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Subrouters resolve their own mismatches; without these a method
	// mismatch under /api falls through to a 404.
	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(RateLimitMiddleware(limiter))
	if requestTimeout > 0 {
		api.Use(TimeoutMiddleware(requestTimeout))
	}

	api.HandleFunc("/cities", h.GetCities).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", h.GetDashboard).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/city", h.PostCity).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/view", h.PostView).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/dropdown", h.PostDropdown).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/locate", h.PostLocate).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/detailed", h.PostDetailed).Methods(http.MethodPost)

	api.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites/{name}", h.PutFavorite).Methods(http.MethodPut)
	api.HandleFunc("/favorites/{name}", h.DeleteFavorite).Methods(http.MethodDelete)
	api.HandleFunc("/favorites/{name}/toggle", h.ToggleFavorite).Methods(http.MethodPost)

	api.HandleFunc("/forecast/{name}", h.GetForecast).Methods(http.MethodGet)
	return router
}
