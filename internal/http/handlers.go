package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/geolocation"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

// maxBodyBytes bounds request bodies on the JSON API.
const maxBodyBytes = 1 << 16

// HealthConfig holds the dependencies the health handler probes.
type HealthConfig struct {
	StartTime        time.Time
	FavoritesBackend string
	// FavoritesPing checks the persistence backend. Nil skips the check.
	FavoritesPing func(ctx context.Context) error
	// APIKeyCheck validates the provider key. Nil skips the check.
	APIKeyCheck func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	controller       *dashboard.Controller
	favorites        *favorites.Service
	reported         *geolocation.ReportedLocator
	home             geolocation.Locator
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. home may be nil, in which case locate
// requests without a body use the last reported position or denial.
func NewHandler(
	controller *dashboard.Controller,
	favs *favorites.Service,
	home geolocation.Locator,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		controller:   controller,
		favorites:    favs,
		reported:     &geolocation.ReportedLocator{},
		home:         home,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetCities handles GET /api/cities.
func (h *Handler) GetCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cities": h.controller.DisplayCities(),
	})
}

// GetDashboard handles GET /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.State())
}

// PostCity handles POST /api/dashboard/city.
func (h *Handler) PostCity(w http.ResponseWriter, r *http.Request) {
	var req validation.SelectCityRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	name, err := validation.ValidateCityName(req.Name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	if err := h.controller.SelectCity(r.Context(), name); err != nil {
		writeControllerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.State())
}

// PostView handles POST /api/dashboard/view.
func (h *Handler) PostView(w http.ResponseWriter, r *http.Request) {
	var req validation.ViewRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	if err := h.controller.SetView(r.Context(), dashboard.View(req.View)); err != nil {
		writeControllerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.State())
}

// PostDropdown handles POST /api/dashboard/dropdown.
func (h *Handler) PostDropdown(w http.ResponseWriter, r *http.Request) {
	h.controller.ToggleDropdown()
	writeJSON(w, http.StatusOK, h.controller.State())
}

// PostDetailed handles POST /api/dashboard/detailed. A failed join is
// reported through the panel, not the status code.
func (h *Handler) PostDetailed(w http.ResponseWriter, r *http.Request) {
	h.controller.LoadDetailed(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, h.controller.State())
}

// PostLocate handles POST /api/dashboard/locate. The body carries the
// browser's position or its denial and is resolved on its own; an empty body
// uses the configured home position, falling back to the last report.
func (h *Handler) PostLocate(w http.ResponseWriter, r *http.Request) {
	var req validation.LocateRequest
	if !decodeRequest(w, r, &req, true) {
		return
	}

	var locator geolocation.Locator
	switch {
	case req.Denied:
		h.reported.Deny()
		locator = deniedLocator
	case req.HasPosition():
		pos := models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude}
		h.reported.Report(pos)
		locator = geolocation.StaticLocator{Position: pos}
	case h.home != nil:
		locator = h.home
	default:
		locator = h.reported
	}

	city, err := h.controller.Locate(r.Context(), locator)
	if err != nil {
		if errors.Is(err, geolocation.ErrGeolocation) {
			writeError(w, r, http.StatusUnprocessableEntity, "GEOLOCATION_FAILED", dashboard.MsgLocateFailed)
			return
		}
		writeControllerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"city":  city,
		"state": h.controller.State(),
	})
}

var deniedLocator = geolocation.LocatorFunc(func(context.Context) (models.Coordinates, error) {
	return models.Coordinates{}, geolocation.ErrDenied
})

// GetFavorites handles GET /api/favorites.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorites": h.favorites.List(),
	})
}

// PutFavorite handles PUT /api/favorites/{name}. Returns 201 when the city
// was added and 200 when it already was a favorite.
func (h *Handler) PutFavorite(w http.ResponseWriter, r *http.Request) {
	name, ok := cityFromPath(w, r)
	if !ok {
		return
	}
	city, err := h.controller.ResolveCity(name)
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	added, err := h.favorites.Add(r.Context(), city)
	if err != nil {
		writePersistenceError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, favoriteResponse(city.Name, true))
}

// DeleteFavorite handles DELETE /api/favorites/{name}.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	name, ok := cityFromPath(w, r)
	if !ok {
		return
	}
	removed, err := h.favorites.Remove(r.Context(), name)
	if err != nil {
		writePersistenceError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, http.StatusNotFound, "FAVORITE_NOT_FOUND", fmt.Sprintf("%s is not a favorite", name))
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse(name, false))
}

// ToggleFavorite handles POST /api/favorites/{name}/toggle.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	name, ok := cityFromPath(w, r)
	if !ok {
		return
	}
	favorite, err := h.controller.ToggleFavorite(r.Context(), name)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownCity) {
			writeControllerError(w, r, err)
			return
		}
		writePersistenceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse(name, favorite))
}

// GetForecast handles GET /api/forecast/{name}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	name, ok := cityFromPath(w, r)
	if !ok {
		return
	}
	fc, err := h.controller.Forecast(r.Context(), name)
	if err != nil {
		if errors.Is(err, dashboard.ErrUnknownCity) {
			writeControllerError(w, r, err)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no such route")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
}

func favoriteResponse(name string, favorite bool) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"favorite": favorite,
	}
}

func cityFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := validation.ValidateCityName(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return "", false
	}
	return name, true
}

// decodeRequest reads a bounded JSON body into v and validates it. Unknown
// fields are rejected. allowEmpty accepts a missing body as the zero value.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
			return false
		}
	}
	if err := validation.Struct(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-dashboard",
		"version":   "dev",
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > failed dependency checks > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := make(map[string]string)
	switch lifecycle.State() {
	case "shutting-down":
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	case "starting":
		return healthResult{"starting", http.StatusServiceUnavailable, "initial_load", checks}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, "", checks}
	}

	var reasons []string
	if h.healthConfig.APIKeyCheck != nil {
		if err := h.healthConfig.APIKeyCheck(ctx); err != nil {
			checks["weatherApi"] = "unhealthy"
			reasons = append(reasons, "api_key_invalid")
		} else {
			checks["weatherApi"] = "healthy"
		}
	}
	if h.healthConfig.FavoritesPing != nil {
		key := "favorites"
		if h.healthConfig.FavoritesBackend != "" {
			key = "favorites:" + h.healthConfig.FavoritesBackend
		}
		if err := h.healthConfig.FavoritesPing(ctx); err != nil {
			checks[key] = "unhealthy"
			reasons = append(reasons, "favorites_unreachable")
		} else {
			checks[key] = "healthy"
		}
	}
	if len(reasons) > 0 {
		return healthResult{"degraded", http.StatusServiceUnavailable, strings.Join(reasons, ","), checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 Service Unavailable error response for upstream failures.
// Logs the underlying error at DEBUG level if logger is available in request context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", dashboard.MsgFetchFailed)
	if logger := requestLogger(r); logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}

func writePersistenceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "PERSISTENCE_FAILED", "Unable to save favorites")
	if logger := requestLogger(r); logger != nil {
		logger.Error("favorites persistence failed", zap.Error(err))
	}
}

func writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrUnknownCity):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", err.Error())
	case errors.Is(err, dashboard.ErrInvalidView):
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal error")
		if logger := requestLogger(r); logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
	}
}

func requestLogger(r *http.Request) *zap.Logger {
	logger, _ := r.Context().Value("logger").(*zap.Logger)
	return logger
}
