package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/skycastapp/skycast/internal/models"
)

// ForecastRecord bundles the aggregated forecast views for a location with
// the timestamp of the raw feed they came from.
type ForecastRecord struct {
	Daily       []models.ForecastEntry
	Hourly      []models.HourlyEntry
	LastUpdated time.Time
}

// AlertRecord holds a location's active alerts and when they were fetched.
type AlertRecord struct {
	Alerts      []models.WeatherAlert
	LastUpdated time.Time
}

// Store is the concurrency-safe in-memory entity store for locations,
// readings, forecasts, and alerts. Records are created on first request and
// overwritten on refresh; nothing is ever evicted. locationId references on
// dependent records are not validated against the location table.
type Store struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	locations map[string]models.Location
	order     []string // location ids in insertion order, for stable listings
	readings  map[string]models.WeatherReading
	forecasts map[string]ForecastRecord
	alerts    map[string]AlertRecord
}

// New creates an empty Store using the given clock for creation timestamps.
func New(clock clockwork.Clock) *Store {
	return &Store{
		clock:     clock,
		locations: make(map[string]models.Location),
		readings:  make(map[string]models.WeatherReading),
		forecasts: make(map[string]ForecastRecord),
		alerts:    make(map[string]AlertRecord),
	}
}

// Seed inserts locations with fresh ids, typically the well-known city list
// from config at startup.
func (s *Store) Seed(locations []models.Location) {
	for _, loc := range locations {
		s.CreateLocation(loc.Name, loc.Latitude, loc.Longitude)
	}
}

// CreateLocation creates and stores a new location with a generated id.
func (s *Store) CreateLocation(name string, lat, lon float64) models.Location {
	loc := models.Location{
		ID:        uuid.New().String(),
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.locations[loc.ID] = loc
	s.order = append(s.order, loc.ID)
	s.mu.Unlock()
	return loc
}

// GetLocation returns the location by id.
func (s *Store) GetLocation(id string) (models.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.locations[id]
	return loc, ok
}

// SearchLocations returns locations whose name contains q, case-insensitive,
// in insertion order. A linear scan; the location table stays small.
func (s *Store) SearchLocations(q string) []models.Location {
	needle := strings.ToLower(strings.TrimSpace(q))
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]models.Location, 0)
	for _, id := range s.order {
		loc := s.locations[id]
		if strings.Contains(strings.ToLower(loc.Name), needle) {
			results = append(results, loc)
		}
	}
	return results
}

// FindByCoordinates returns the location matching the coordinate at the
// 4-decimal precision used for grid keys.
func (s *Store) FindByCoordinates(lat, lon float64) (models.Location, bool) {
	want := coordKey(lat, lon)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		loc := s.locations[id]
		if coordKey(loc.Latitude, loc.Longitude) == want {
			return loc, true
		}
	}
	return models.Location{}, false
}

func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// GetReading returns the current reading for a location.
func (s *Store) GetReading(locationID string) (models.WeatherReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[locationID]
	return r, ok
}

// PutReading overwrites the current reading for a location. Last write wins
// on concurrent refresh.
func (s *Store) PutReading(locationID string, r models.WeatherReading) {
	r.LocationID = locationID
	s.mu.Lock()
	s.readings[locationID] = r
	s.mu.Unlock()
}

// GetForecast returns the stored forecast record for a location.
func (s *Store) GetForecast(locationID string) (ForecastRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.forecasts[locationID]
	return rec, ok
}

// PutForecast overwrites the forecast record for a location.
func (s *Store) PutForecast(locationID string, rec ForecastRecord) {
	s.mu.Lock()
	s.forecasts[locationID] = rec
	s.mu.Unlock()
}

// GetAlerts returns the stored alert record for a location.
func (s *Store) GetAlerts(locationID string) (AlertRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.alerts[locationID]
	return rec, ok
}

// PutAlerts overwrites the alert record for a location, stamping alerts with
// the location id.
func (s *Store) PutAlerts(locationID string, rec AlertRecord) {
	for i := range rec.Alerts {
		rec.Alerts[i].LocationID = locationID
	}
	s.mu.Lock()
	s.alerts[locationID] = rec
	s.mu.Unlock()
}

// AllAlerts returns every stored alert across locations, grouped by location
// insertion order.
func (s *Store) AllAlerts() []models.WeatherAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.WeatherAlert, 0)
	for _, id := range s.order {
		if rec, ok := s.alerts[id]; ok {
			all = append(all, rec.Alerts...)
		}
	}
	return all
}

// DefaultSeedLocations is the built-in city list used when config supplies none.
func DefaultSeedLocations() []models.Location {
	return []models.Location{
		{Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
		{Name: "Los Angeles", Latitude: 34.0522, Longitude: -118.2437},
		{Name: "Chicago", Latitude: 41.8781, Longitude: -87.6298},
		{Name: "Houston", Latitude: 29.7604, Longitude: -95.3698},
		{Name: "Seattle", Latitude: 47.6062, Longitude: -122.3321},
		{Name: "Miami", Latitude: 25.7617, Longitude: -80.1918},
		{Name: "Denver", Latitude: 39.7392, Longitude: -104.9903},
		{Name: "Boston", Latitude: 42.3601, Longitude: -71.0589},
	}
}
