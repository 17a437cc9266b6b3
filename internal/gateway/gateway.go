package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/cache"
	"github.com/skycastapp/skycast/internal/circuitbreaker"
	"github.com/skycastapp/skycast/internal/client"
	"github.com/skycastapp/skycast/internal/models"
	"github.com/skycastapp/skycast/internal/observability"
	"github.com/skycastapp/skycast/internal/sourcestats"
	"github.com/skycastapp/skycast/internal/synthetic"
)

// Live coverage is a coarse continental-US bounding box. Coordinates outside
// it never touch the network.
const (
	coverageMinLat = 20.0
	coverageMaxLat = 50.0
	coverageMinLon = -180.0
	coverageMaxLon = -60.0
)

// syntheticPeriodCount is the length of the generated forecast feed, sized so
// the aggregator always has enough slots for daily and hourly summaries.
const syntheticPeriodCount = 14

// Gateway resolves a coordinate to normalized weather data, preferring the
// live grid API for covered coordinates and masking every failure with the
// synthetic generator. No method returns an error.
type Gateway struct {
	api       client.WeatherAPI
	generator *synthetic.Generator
	gridCache cache.GridCache
	breaker   *circuitbreaker.Breaker
	clock     clockwork.Clock
	logger    *zap.Logger
	gridTTL   time.Duration
}

// New creates a Gateway. breaker may be nil to disable circuit breaking.
func New(
	api client.WeatherAPI,
	generator *synthetic.Generator,
	gridCache cache.GridCache,
	breaker *circuitbreaker.Breaker,
	clock clockwork.Clock,
	logger *zap.Logger,
	gridTTL time.Duration,
) *Gateway {
	if gridTTL <= 0 {
		gridTTL = 24 * time.Hour
	}
	return &Gateway{
		api:       api,
		generator: generator,
		gridCache: gridCache,
		breaker:   breaker,
		clock:     clock,
		logger:    logger,
		gridTTL:   gridTTL,
	}
}

// InLiveCoverage reports whether the coordinate is eligible for the live path.
func InLiveCoverage(coord models.Coordinate) bool {
	return coord.Latitude >= coverageMinLat && coord.Latitude <= coverageMaxLat &&
		coord.Longitude >= coverageMinLon && coord.Longitude <= coverageMaxLon
}

// CurrentConditions returns a current-conditions reading for the coordinate.
// For covered coordinates the grid lookup proves upstream reachability and
// primes the grid cache, but the reading itself is always generated:
// observation parsing from the grid's station feed is not implemented yet.
// TODO: fetch and parse the latest station observation once grid metadata resolves.
func (g *Gateway) CurrentConditions(ctx context.Context, coord models.Coordinate) models.WeatherReading {
	now := g.clock.Now()

	if !InLiveCoverage(coord) {
		observability.SyntheticFallbacksTotal.WithLabelValues("coverage").Inc()
		return g.generator.Reading(coord, now)
	}

	if _, err := g.resolveGrid(ctx, coord); err != nil {
		g.recordFallback("current", coord, err)
	} else {
		sourcestats.RecordLive()
	}
	return g.generator.Reading(coord, now)
}

// Forecast returns the raw multi-period forecast feed for the coordinate,
// live when possible, otherwise a synthetic sequence advanced one simulated
// day per slot.
func (g *Gateway) Forecast(ctx context.Context, coord models.Coordinate) []models.ForecastPeriod {
	now := g.clock.Now()

	if !InLiveCoverage(coord) {
		observability.SyntheticFallbacksTotal.WithLabelValues("coverage").Inc()
		return g.generator.ForecastPeriods(coord, now, syntheticPeriodCount)
	}

	ref, err := g.resolveGrid(ctx, coord)
	if err != nil {
		g.recordFallback("forecast", coord, err)
		return g.generator.ForecastPeriods(coord, now, syntheticPeriodCount)
	}

	var periods []models.ForecastPeriod
	err = g.do(func() error {
		var ferr error
		periods, ferr = g.api.FetchForecast(ctx, ref.ForecastURL)
		return ferr
	})
	if err != nil {
		g.recordFallback("forecast", coord, err)
		return g.generator.ForecastPeriods(coord, now, syntheticPeriodCount)
	}

	sourcestats.RecordLive()
	return periods
}

// ActiveAlerts returns active alerts for the coordinate. Outside live
// coverage there is no alert source, and on failure the masked result is an
// empty list rather than synthetic alerts.
func (g *Gateway) ActiveAlerts(ctx context.Context, coord models.Coordinate) []models.WeatherAlert {
	if !InLiveCoverage(coord) {
		return []models.WeatherAlert{}
	}

	var alerts []models.WeatherAlert
	err := g.do(func() error {
		var aerr error
		alerts, aerr = g.api.FetchAlerts(ctx, coord)
		return aerr
	})
	if err != nil {
		g.recordFallback("alerts", coord, err)
		return []models.WeatherAlert{}
	}

	sourcestats.RecordLive()
	if alerts == nil {
		alerts = []models.WeatherAlert{}
	}
	return alerts
}

// GridKey is the cache key for a coordinate, rounded to the 4-decimal
// precision the upstream indexes on.
func GridKey(coord models.Coordinate) string {
	return fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude)
}

// resolveGrid returns the grid reference for a covered coordinate, consulting
// the grid cache before the points endpoint.
func (g *Gateway) resolveGrid(ctx context.Context, coord models.Coordinate) (models.GridReference, error) {
	key := GridKey(coord)

	ref, ok, err := g.gridCache.Get(ctx, key)
	if err != nil {
		observability.GridCacheRequestsTotal.WithLabelValues("error").Inc()
		g.logger.Warn("grid cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.GridCacheRequestsTotal.WithLabelValues("hit").Inc()
		return ref, nil
	} else {
		observability.GridCacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	err = g.do(func() error {
		var lerr error
		ref, lerr = g.api.LookupGrid(ctx, coord)
		return lerr
	})
	if err != nil {
		return models.GridReference{}, err
	}

	if setErr := g.gridCache.Set(ctx, key, ref, g.gridTTL); setErr != nil {
		g.logger.Warn("grid cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	return ref, nil
}

// do runs fn through the circuit breaker when one is configured.
func (g *Gateway) do(fn func() error) error {
	if g.breaker == nil {
		return fn()
	}
	return g.breaker.Do(fn)
}

// recordFallback logs and counts a masked live-path failure.
func (g *Gateway) recordFallback(op string, coord models.Coordinate, err error) {
	sourcestats.RecordFallback()
	reason := "upstream_error"
	if errors.Is(err, circuitbreaker.ErrOpen) {
		reason = "circuit_open"
	}
	observability.SyntheticFallbacksTotal.WithLabelValues(reason).Inc()
	g.logger.Warn("live path failed, serving synthetic data",
		zap.String("op", op),
		zap.Float64("lat", coord.Latitude),
		zap.Float64("lon", coord.Longitude),
		zap.Error(err))
}
