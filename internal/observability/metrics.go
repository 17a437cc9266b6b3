package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream grid API call rate per operation (points, forecast, alerts).
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per operation. Watch for: p95 > 2s (upstream degradation).
	UpstreamCallDuration *prometheus.HistogramVec

	// Synthetic fallback rate by reason (coverage, circuit_open, upstream_error).
	// A rising upstream_error share means live data is being masked.
	SyntheticFallbacksTotal *prometheus.CounterVec

	// Grid reference cache outcomes (hit, miss, error).
	GridCacheRequestsTotal *prometheus.CounterVec

	// Reading refreshes by trigger (initial, stale). Steady-state traffic should
	// be mostly cache serves; refreshes track upstream load.
	ReadingRefreshesTotal *prometheus.CounterVec

	// Refreshes absorbed by the per-location coalescer instead of going upstream.
	CoalescedRefreshesTotal prometheus.Counter

	// Total weather lookups. rate() for QPS.
	WeatherQueriesTotal prometheus.Counter

	// Rate limit denials (429). Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker transitions for the live upstream path.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Circuit breaker state gauge: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream weather grid API calls",
		},
		[]string{"op", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "Upstream weather grid API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op", "status"},
	)
	SyntheticFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syntheticFallbacksTotal",
			Help: "Readings and forecasts served from the synthetic generator, by reason",
		},
		[]string{"reason"},
	)
	GridCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridCacheRequestsTotal",
			Help: "Grid reference cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
	ReadingRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readingRefreshesTotal",
			Help: "Weather data refreshes by trigger (initial, stale)",
		},
		[]string{"trigger"},
	)
	CoalescedRefreshesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedRefreshesTotal",
			Help: "Refresh requests that waited on an in-flight refresh instead of calling upstream",
		},
	)
	WeatherQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherQueriesTotal",
			Help: "Total number of weather lookups",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions for the upstream live path",
		},
		[]string{"from", "to"},
	)
	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamCallDuration,
		SyntheticFallbacksTotal, GridCacheRequestsTotal,
		ReadingRefreshesTotal, CoalescedRefreshesTotal,
		WeatherQueriesTotal, RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
