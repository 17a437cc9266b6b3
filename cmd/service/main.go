package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skycastapp/skycast/internal/cache"
	"github.com/skycastapp/skycast/internal/circuitbreaker"
	"github.com/skycastapp/skycast/internal/client"
	"github.com/skycastapp/skycast/internal/config"
	"github.com/skycastapp/skycast/internal/gateway"
	httphandler "github.com/skycastapp/skycast/internal/http"
	"github.com/skycastapp/skycast/internal/lifecycle"
	"github.com/skycastapp/skycast/internal/observability"
	"github.com/skycastapp/skycast/internal/service"
	"github.com/skycastapp/skycast/internal/store"
	"github.com/skycastapp/skycast/internal/synthetic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	gridClient, err := client.NewGridClient(cfg.UpstreamBaseURL, cfg.UpstreamUserAgent, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("grid client", zap.Error(err))
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Cooldown:         cfg.BreakerCooldown,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
			observability.CircuitBreakerState.Set(float64(to))
			logger.Info("circuit breaker transition",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	observability.CircuitBreakerState.Set(float64(circuitbreaker.StateClosed))

	var gridCache cache.GridCache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.GridCacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		gridCache = mc
		logger.Info("grid cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		gridCache = cache.NewInMemoryCache()
		logger.Info("grid cache backend: in_memory")
	}

	clock := clockwork.NewRealClock()
	generator := synthetic.NewGenerator()
	gw := gateway.New(gridClient, generator, gridCache, breaker, clock, logger, cfg.GridCacheTTL)

	entityStore := store.New(clock)
	seeds := cfg.SeedLocations
	if len(seeds) == 0 {
		seeds = store.DefaultSeedLocations()
	}
	entityStore.Seed(seeds)
	logger.Info("seeded locations", zap.Int("count", len(seeds)))

	weatherService := service.NewWeatherService(entityStore, gw, clock, logger, cfg.Staleness, cfg.CoalesceTimeout)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:      cfg.DegradedWindow,
		DegradedFallbackPct: cfg.DegradedFallbackPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger)

	if cfg.WarmOnStart {
		warmer := service.NewWarmer(weatherService, logger)
		warmLocations := entityStore.SearchLocations("")
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, warmLocations); err != nil {
			logger.Warn("warm-up failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), warmLocations, cfg.WarmInterval); err != nil && err != context.Canceled {
					logger.Error("periodic warm-up stopped", zap.Error(err))
				}
			}()
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	api.HandleFunc("/locations/search", handler.SearchLocations).Methods("GET")
	api.HandleFunc("/locations/by-coordinates", handler.LocationByCoordinates).Methods("GET")
	api.HandleFunc("/weather/{locationId}", handler.GetWeather).Methods("GET")
	api.HandleFunc("/forecast/{locationId}", handler.GetForecast).Methods("GET")
	api.HandleFunc("/hourly/{locationId}", handler.GetHourly).Methods("GET")
	api.HandleFunc("/alerts", handler.ListAlerts).Methods("GET")
	api.HandleFunc("/alerts/{locationId}", handler.GetAlerts).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
