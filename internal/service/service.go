package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/forecast"
	"github.com/skycastapp/skycast/internal/models"
	"github.com/skycastapp/skycast/internal/observability"
	"github.com/skycastapp/skycast/internal/store"
)

// ErrLocationNotFound is returned when a location id has no record.
var ErrLocationNotFound = errors.New("location not found")

// DefaultStaleness is the window after which a stored record is refetched.
const DefaultStaleness = 30 * time.Minute

// WeatherSource resolves a coordinate to weather data and never fails; the
// gateway satisfies it.
type WeatherSource interface {
	CurrentConditions(ctx context.Context, coord models.Coordinate) models.WeatherReading
	Forecast(ctx context.Context, coord models.Coordinate) []models.ForecastPeriod
	ActiveAlerts(ctx context.Context, coord models.Coordinate) []models.WeatherAlert
}

// WeatherService applies the freshness policy over the entity store: serve
// the stored record when younger than the staleness window, otherwise refresh
// through the gateway and overwrite in place. Concurrent refreshes of the
// same location are coalesced into one upstream fetch.
type WeatherService struct {
	store     *store.Store
	source    WeatherSource
	clock     clockwork.Clock
	logger    *zap.Logger
	staleness time.Duration
	flights   *coalescer
}

// NewWeatherService creates a WeatherService. staleness <= 0 selects the
// 30-minute default; coalesceTimeout bounds how long followers wait on an
// in-flight refresh.
func NewWeatherService(
	st *store.Store,
	source WeatherSource,
	clock clockwork.Clock,
	logger *zap.Logger,
	staleness time.Duration,
	coalesceTimeout time.Duration,
) *WeatherService {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &WeatherService{
		store:     st,
		source:    source,
		clock:     clock,
		logger:    logger,
		staleness: staleness,
		flights:   newCoalescer(coalesceTimeout),
	}
}

// SearchLocations returns locations whose name matches q.
func (s *WeatherService) SearchLocations(q string) []models.Location {
	return s.store.SearchLocations(q)
}

// LocationByCoordinates returns the location at the coordinate, creating one
// named after the coordinate when unseen.
func (s *WeatherService) LocationByCoordinates(lat, lon float64) models.Location {
	if loc, ok := s.store.FindByCoordinates(lat, lon); ok {
		return loc
	}
	name := fmt.Sprintf("%.2f, %.2f", lat, lon)
	loc := s.store.CreateLocation(name, lat, lon)
	s.logger.Info("location created from coordinates",
		zap.String("location_id", loc.ID),
		zap.Float64("lat", lat),
		zap.Float64("lon", lon))
	return loc
}

// GetWeather returns the location and its current reading, refreshing when
// the stored reading is absent or has aged past the staleness window.
func (s *WeatherService) GetWeather(ctx context.Context, locationID string) (models.Location, models.WeatherReading, error) {
	loc, ok := s.store.GetLocation(locationID)
	if !ok {
		return models.Location{}, models.WeatherReading{}, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}
	observability.WeatherQueriesTotal.Inc()

	if reading, ok := s.store.GetReading(locationID); ok && s.fresh(reading.LastUpdated) {
		return loc, reading, nil
	}

	trigger := "initial"
	if _, ok := s.store.GetReading(locationID); ok {
		trigger = "stale"
	}

	led, err := s.flights.Do(ctx, "reading:"+locationID, func() error {
		reading := s.source.CurrentConditions(ctx, loc.Coordinate())
		s.store.PutReading(locationID, reading)
		return nil
	})
	if err != nil {
		// Only follower waits can fail (ctx/timeout); the refresh itself cannot.
		return models.Location{}, models.WeatherReading{}, err
	}
	if led {
		observability.ReadingRefreshesTotal.WithLabelValues(trigger).Inc()
	} else {
		observability.CoalescedRefreshesTotal.Inc()
	}

	reading, ok := s.store.GetReading(locationID)
	if !ok {
		// Unreachable when the refresh above completed; guards the zero value.
		return models.Location{}, models.WeatherReading{}, fmt.Errorf("no reading for %s after refresh", locationID)
	}
	return loc, reading, nil
}

// GetForecast returns up to five daily forecast entries for the location.
func (s *WeatherService) GetForecast(ctx context.Context, locationID string) ([]models.ForecastEntry, error) {
	rec, err := s.ensureForecast(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return rec.Daily, nil
}

// GetHourly returns up to eight hourly entries for the location.
func (s *WeatherService) GetHourly(ctx context.Context, locationID string) ([]models.HourlyEntry, error) {
	rec, err := s.ensureForecast(ctx, locationID)
	if err != nil {
		return nil, err
	}
	return rec.Hourly, nil
}

// ensureForecast serves the stored forecast record or refreshes it through
// the gateway, aggregating the raw feed into daily and hourly views.
func (s *WeatherService) ensureForecast(ctx context.Context, locationID string) (store.ForecastRecord, error) {
	loc, ok := s.store.GetLocation(locationID)
	if !ok {
		return store.ForecastRecord{}, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}

	if rec, ok := s.store.GetForecast(locationID); ok && s.fresh(rec.LastUpdated) {
		return rec, nil
	}

	_, err := s.flights.Do(ctx, "forecast:"+locationID, func() error {
		periods := s.source.Forecast(ctx, loc.Coordinate())
		s.store.PutForecast(locationID, store.ForecastRecord{
			Daily:       forecast.DailySummaries(periods),
			Hourly:      forecast.HourlySummaries(periods),
			LastUpdated: s.clock.Now(),
		})
		return nil
	})
	if err != nil {
		return store.ForecastRecord{}, err
	}

	rec, ok := s.store.GetForecast(locationID)
	if !ok {
		return store.ForecastRecord{}, fmt.Errorf("no forecast for %s after refresh", locationID)
	}
	return rec, nil
}

// GetAlerts returns active alerts for the location, refreshed on the same
// staleness window as readings.
func (s *WeatherService) GetAlerts(ctx context.Context, locationID string) ([]models.WeatherAlert, error) {
	loc, ok := s.store.GetLocation(locationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}

	if rec, ok := s.store.GetAlerts(locationID); ok && s.fresh(rec.LastUpdated) {
		return rec.Alerts, nil
	}

	_, err := s.flights.Do(ctx, "alerts:"+locationID, func() error {
		alerts := s.source.ActiveAlerts(ctx, loc.Coordinate())
		s.store.PutAlerts(locationID, store.AlertRecord{
			Alerts:      alerts,
			LastUpdated: s.clock.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, _ := s.store.GetAlerts(locationID)
	return rec.Alerts, nil
}

// AllAlerts returns every stored alert across locations.
func (s *WeatherService) AllAlerts() []models.WeatherAlert {
	return s.store.AllAlerts()
}

// fresh reports whether a record updated at t is still within the staleness
// window. Records exactly at the window boundary are stale.
func (s *WeatherService) fresh(t time.Time) bool {
	return s.clock.Now().Sub(t) < s.staleness
}
