package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/lifecycle"
	"github.com/skycastapp/skycast/internal/service"
	"github.com/skycastapp/skycast/internal/sourcestats"
	"github.com/skycastapp/skycast/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	// DegradedWindow and DegradedFallbackPct define the degraded condition:
	// when the synthetic-fallback share of in-coverage requests within the
	// window reaches the percentage, the service reports degraded.
	DegradedWindow      time.Duration
	DegradedFallbackPct int
	// CachePing, when set, is called to check grid cache reachability.
	// Used when the backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather      *service.WeatherService
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(weather *service.WeatherService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		weather:      weather,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// SearchLocations handles GET /api/locations/search?q=.
func (h *Handler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	q, err := validation.ValidateSearchQuery(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.weather.SearchLocations(q))
}

// LocationByCoordinates handles GET /api/locations/by-coordinates?lat=&lon=.
// Creates the location when unseen.
func (h *Handler) LocationByCoordinates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.weather.LocationByCoordinates(lat, lon))
}

// GetWeather handles GET /api/weather/{locationId}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationId"]

	loc, reading, err := h.weather.GetWeather(r.Context(), locationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"location": loc,
		"weather":  reading,
	})
}

// GetForecast handles GET /api/forecast/{locationId}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	entries, err := h.weather.GetForecast(r.Context(), mux.Vars(r)["locationId"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHourly handles GET /api/hourly/{locationId}.
func (h *Handler) GetHourly(w http.ResponseWriter, r *http.Request) {
	entries, err := h.weather.GetHourly(r.Context(), mux.Vars(r)["locationId"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetAlerts handles GET /api/alerts/{locationId}.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.weather.GetAlerts(r.Context(), mux.Vars(r)["locationId"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// ListAlerts handles GET /api/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.weather.AllAlerts())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

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

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["upstream"] = "unhealthy"
	} else {
		checks["upstream"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["gridCache"] = "healthy"
		} else {
			checks["gridCache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "skycast",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > degraded (fallback rate breach) > healthy. The gateway
// masks upstream failures, so degradation is visible only through the
// synthetic-fallback share.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedFallbackPct > 0 {
		fallbacks, total := sourcestats.FallbackRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(fallbacks) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedFallbackPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "fallback_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error shape {"message": ...}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeServiceError maps service errors to HTTP statuses: unknown location is
// 404, anything else is the 503 catch-all. The gateway's fallback means the
// 503 path should not occur in practice.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrLocationNotFound) {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}
	writeError(w, http.StatusServiceUnavailable, "unable to fetch weather data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("service error", zap.Error(err))
	}
}
