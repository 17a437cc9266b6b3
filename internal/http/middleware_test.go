package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// TestCorrelationIDMiddleware verifies id generation, header propagation, and
// reuse of a caller-supplied id.
func TestCorrelationIDMiddleware(t *testing.T) {
	var seenID string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seenID, _ = r.Context().Value("correlation_id").(string)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if seenID == "" {
		t.Error("no correlation id generated")
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != seenID {
		t.Errorf("response header id = %q, context id = %q", got, seenID)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "caller-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if seenID != "caller-id" {
		t.Errorf("caller-supplied id not propagated, got %q", seenID)
	}
}

// TestRateLimitMiddleware verifies exhaustion returns 429 with the standard
// error shape, and that a nil limiter disables limiting.
func TestRateLimitMiddleware(t *testing.T) {
	router := mux.NewRouter()
	router.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(1), 1)))
	router.HandleFunc("/x", okHandler)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/x", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/x", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "too many requests" {
		t.Errorf("message = %q", body["message"])
	}

	unlimited := mux.NewRouter()
	unlimited.Use(RateLimitMiddleware(nil))
	unlimited.HandleFunc("/x", okHandler)
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("nil limiter request %d status = %d, want 200", i, rec.Code)
		}
	}
}

// TestTimeoutMiddleware verifies the deadline lands on the request context.
func TestTimeoutMiddleware(t *testing.T) {
	var hadDeadline bool
	router := mux.NewRouter()
	router.Use(TimeoutMiddleware(5 * time.Second))
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		_, hadDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !hadDeadline {
		t.Error("request context has no deadline")
	}
}

// TestGetRoute verifies identifier paths collapse to their route template.
func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/locations/search", "/api/locations/search"},
		{"/api/locations/by-coordinates", "/api/locations/by-coordinates"},
		{"/api/alerts", "/api/alerts"},
		{"/api/weather/abc-123", "/api/weather/{locationId}"},
		{"/api/forecast/abc-123", "/api/forecast/{locationId}"},
		{"/api/hourly/abc-123", "/api/hourly/{locationId}"},
		{"/api/alerts/abc-123", "/api/alerts/{locationId}"},
		{"/unknown", "/unknown"},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if got := getRoute(r); got != tc.want {
			t.Errorf("getRoute(%s) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
	}
	for _, tc := range tests {
		if got := statusCodeString(tc.code); got != tc.want {
			t.Errorf("statusCodeString(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
