package models

import "time"

// Coordinate is a latitude/longitude pair. Values are accepted as-is;
// out-of-range coordinates are routed to the synthetic path rather than rejected.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a named place users can look up weather for.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

// Coordinate returns the location's coordinate pair.
func (l Location) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}

// WeatherReading is the normalized current-conditions record for a location.
// A location has at most one current reading; refreshes overwrite in place.
type WeatherReading struct {
	LocationID    string    `json:"locationId"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feelsLike"`
	Humidity      int       `json:"humidity"`
	WindSpeed     float64   `json:"windSpeed"`
	WindDirection string    `json:"windDirection"`
	Pressure      float64   `json:"pressure"`
	Visibility    float64   `json:"visibility"`
	UVIndex       int       `json:"uvIndex"`
	Condition     string    `json:"condition"`
	Icon          string    `json:"icon"`
	Precipitation float64   `json:"precipitation"`
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Synthetic     bool      `json:"synthetic,omitempty"` // generated rather than observed
}

// ForecastPeriod is one raw entry of the multi-period forecast feed, either
// mapped from the upstream grid forecast or generated synthetically.
type ForecastPeriod struct {
	StartTime         time.Time `json:"startTime"`
	IsDaytime         bool      `json:"isDaytime"`
	Temperature       float64   `json:"temperature"`
	Condition         string    `json:"condition"`
	Icon              string    `json:"icon"`
	PrecipProbability int       `json:"precipProbability"`
	WindSpeed         float64   `json:"windSpeed"`
	Humidity          int       `json:"humidity"`
}

// ForecastEntry is a one-per-day summary, at most five per location.
type ForecastEntry struct {
	Date              string  `json:"date"` // local calendar date, YYYY-MM-DD
	High              float64 `json:"high"`
	Low               float64 `json:"low"`
	Condition         string  `json:"condition"`
	Icon              string  `json:"icon"`
	PrecipProbability int     `json:"precipProbability"`
	WindSpeed         float64 `json:"windSpeed"`
	Humidity          int     `json:"humidity"`
}

// HourlyEntry is a one-per-slot summary, at most eight per location.
type HourlyEntry struct {
	Timestamp         time.Time `json:"timestamp"`
	Temperature       float64   `json:"temperature"`
	Condition         string    `json:"condition"`
	Icon              string    `json:"icon"`
	PrecipProbability int       `json:"precipProbability"`
	WindSpeed         float64   `json:"windSpeed"`
}

// WeatherAlert is an active hazard advisory attached to a location.
type WeatherAlert struct {
	ID          string    `json:"id"`
	LocationID  string    `json:"locationId"`
	Event       string    `json:"event"`
	Severity    string    `json:"severity"`
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	Onset       time.Time `json:"onset"`
	Expires     time.Time `json:"expires"`
}

// GridReference identifies the upstream service's spatial indexing unit for a
// coordinate, resolved via the points lookup and cached long-term.
type GridReference struct {
	Office      string `json:"office"`
	GridX       int    `json:"gridX"`
	GridY       int    `json:"gridY"`
	ForecastURL string `json:"forecastUrl"`
}
