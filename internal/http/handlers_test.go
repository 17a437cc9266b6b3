package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/lifecycle"
	"github.com/skycastapp/skycast/internal/models"
	"github.com/skycastapp/skycast/internal/service"
	"github.com/skycastapp/skycast/internal/sourcestats"
	"github.com/skycastapp/skycast/internal/store"
)

// stubSource hands out fixed weather data, standing in for the gateway.
type stubSource struct {
	clock  clockwork.Clock
	alerts []models.WeatherAlert
}

func (s *stubSource) CurrentConditions(ctx context.Context, coord models.Coordinate) models.WeatherReading {
	return models.WeatherReading{
		Temperature: 72,
		Condition:   "clear sky",
		Icon:        "01d",
		LastUpdated: s.clock.Now(),
		Synthetic:   true,
	}
}

func (s *stubSource) Forecast(ctx context.Context, coord models.Coordinate) []models.ForecastPeriod {
	base := s.clock.Now()
	var periods []models.ForecastPeriod
	for i := 0; i < 14; i++ {
		periods = append(periods, models.ForecastPeriod{
			StartTime:   base.Add(time.Duration(i) * 12 * time.Hour),
			IsDaytime:   i%2 == 0,
			Temperature: 70,
			Condition:   "Sunny",
			Icon:        "01d",
		})
	}
	return periods
}

func (s *stubSource) ActiveAlerts(ctx context.Context, coord models.Coordinate) []models.WeatherAlert {
	return s.alerts
}

func newTestHandler(t *testing.T) (*Handler, *store.Store, *stubSource) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC))
	st := store.New(clock)
	src := &stubSource{clock: clock}
	svc := service.NewWeatherService(st, src, clock, zap.NewNop(), 0, 0)
	h := NewHandler(svc, &HealthConfig{DegradedWindow: time.Minute, DegradedFallbackPct: 50}, zap.NewNop())
	return h, st, src
}

func newTestRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/locations/search", h.SearchLocations).Methods("GET")
	api.HandleFunc("/locations/by-coordinates", h.LocationByCoordinates).Methods("GET")
	api.HandleFunc("/weather/{locationId}", h.GetWeather).Methods("GET")
	api.HandleFunc("/forecast/{locationId}", h.GetForecast).Methods("GET")
	api.HandleFunc("/hourly/{locationId}", h.GetHourly).Methods("GET")
	api.HandleFunc("/alerts", h.ListAlerts).Methods("GET")
	api.HandleFunc("/alerts/{locationId}", h.GetAlerts).Methods("GET")
	return router
}

func doRequest(router *mux.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body["message"]
}

// TestSearchLocations_OK verifies matching locations are returned as JSON.
func TestSearchLocations_OK(t *testing.T) {
	h, st, _ := newTestHandler(t)
	st.CreateLocation("Boston", 42.3601, -71.0589)
	st.CreateLocation("Seattle", 47.6062, -122.3321)
	router := newTestRouter(h)

	rec := doRequest(router, "/api/locations/search?q=bos")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var locs []models.Location
	if err := json.Unmarshal(rec.Body.Bytes(), &locs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(locs) != 1 || locs[0].Name != "Boston" {
		t.Errorf("locations = %+v, want just Boston", locs)
	}
}

// TestSearchLocations_BlankQuery verifies a missing q yields 400 with the
// standard error shape.
func TestSearchLocations_BlankQuery(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	for _, path := range []string{"/api/locations/search", "/api/locations/search?q=%20%20"} {
		rec := doRequest(router, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		if msg := decodeMessage(t, rec); msg == "" {
			t.Errorf("%s: error body missing message", path)
		}
	}
}

// TestLocationByCoordinates verifies lookup-or-create plus 400 on bad input.
func TestLocationByCoordinates(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	rec := doRequest(router, "/api/locations/by-coordinates?lat=51.5074&lon=-0.1278")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var loc models.Location
	if err := json.Unmarshal(rec.Body.Bytes(), &loc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loc.ID == "" || loc.Name != "51.51, -0.13" {
		t.Errorf("location = %+v", loc)
	}

	rec = doRequest(router, "/api/locations/by-coordinates?lat=abc&lon=-0.1278")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad lat: status = %d, want 400", rec.Code)
	}
}

// TestGetWeather_OK verifies the combined location+weather response shape.
func TestGetWeather_OK(t *testing.T) {
	h, st, _ := newTestHandler(t)
	loc := st.CreateLocation("Boston", 42.3601, -71.0589)
	router := newTestRouter(h)

	rec := doRequest(router, "/api/weather/"+loc.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Location models.Location       `json:"location"`
		Weather  models.WeatherReading `json:"weather"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Location.ID != loc.ID {
		t.Errorf("location id = %s, want %s", body.Location.ID, loc.ID)
	}
	if body.Weather.Temperature != 72 || body.Weather.LocationID != loc.ID {
		t.Errorf("weather = %+v", body.Weather)
	}
}

// TestGetWeather_UnknownLocation verifies 404 with the standard error shape.
func TestGetWeather_UnknownLocation(t *testing.T) {
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	rec := doRequest(router, "/api/weather/no-such-id")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "location not found" {
		t.Errorf("message = %q", msg)
	}
}

// TestGetForecastAndHourly verifies the aggregated views and their caps.
func TestGetForecastAndHourly(t *testing.T) {
	h, st, _ := newTestHandler(t)
	loc := st.CreateLocation("Boston", 42.3601, -71.0589)
	router := newTestRouter(h)

	rec := doRequest(router, "/api/forecast/"+loc.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast status = %d, want 200", rec.Code)
	}
	var daily []models.ForecastEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &daily); err != nil {
		t.Fatalf("decode daily: %v", err)
	}
	if len(daily) != 5 {
		t.Errorf("daily entries = %d, want 5", len(daily))
	}

	rec = doRequest(router, "/api/hourly/"+loc.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("hourly status = %d, want 200", rec.Code)
	}
	var hourly []models.HourlyEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &hourly); err != nil {
		t.Fatalf("decode hourly: %v", err)
	}
	if len(hourly) != 8 {
		t.Errorf("hourly entries = %d, want 8", len(hourly))
	}

	if rec := doRequest(router, "/api/forecast/no-such-id"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown forecast: status = %d, want 404", rec.Code)
	}
}

// TestAlertsEndpoints verifies per-location alerts and the global listing.
func TestAlertsEndpoints(t *testing.T) {
	h, st, src := newTestHandler(t)
	loc := st.CreateLocation("Houston", 29.7604, -95.3698)
	src.alerts = []models.WeatherAlert{{ID: "a1", Event: "Flood Watch", Severity: "Severe"}}
	router := newTestRouter(h)

	rec := doRequest(router, "/api/alerts/"+loc.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var alerts []models.WeatherAlert
	if err := json.Unmarshal(rec.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(alerts) != 1 || alerts[0].LocationID != loc.ID {
		t.Errorf("alerts = %+v", alerts)
	}

	rec = doRequest(router, "/api/alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var all []models.WeatherAlert
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all alerts = %d, want 1", len(all))
	}
}

// TestGetHealth_Healthy verifies the healthy response shape.
func TestGetHealth_Healthy(t *testing.T) {
	sourcestats.Reset()
	lifecycle.SetShuttingDown(false)
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	rec := doRequest(router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status  string            `json:"status"`
		Service string            `json:"service"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Service != "skycast" {
		t.Errorf("body = %+v", body)
	}
	if body.Checks["upstream"] != "healthy" {
		t.Errorf("upstream check = %q", body.Checks["upstream"])
	}
}

// TestGetHealth_DegradedOnFallbackRate verifies the fallback-share breach
// reports degraded with 503.
func TestGetHealth_DegradedOnFallbackRate(t *testing.T) {
	sourcestats.Reset()
	t.Cleanup(sourcestats.Reset)
	lifecycle.SetShuttingDown(false)
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	sourcestats.RecordFallback()
	sourcestats.RecordFallback()
	sourcestats.RecordLive()

	rec := doRequest(router, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Checks["upstream"] != "unhealthy" {
		t.Errorf("upstream check = %q", body.Checks["upstream"])
	}
}

// TestGetHealth_ShuttingDown verifies the shutdown signal takes priority.
func TestGetHealth_ShuttingDown(t *testing.T) {
	sourcestats.Reset()
	lifecycle.SetShuttingDown(true)
	t.Cleanup(func() { lifecycle.SetShuttingDown(false) })
	h, _, _ := newTestHandler(t)
	router := newTestRouter(h)

	rec := doRequest(router, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "shutting-down" {
		t.Errorf("status = %q, want shutting-down", body.Status)
	}
}
