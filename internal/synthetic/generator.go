package synthetic

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/skycastapp/skycast/internal/models"
)

// condition pairs a display text with its icon code. The generator picks
// uniformly from this list.
type condition struct {
	text string
	icon string
}

var conditions = []condition{
	{"clear sky", "01d"},
	{"few clouds", "02d"},
	{"scattered clouds", "03d"},
	{"broken clouds", "04d"},
	{"overcast clouds", "04d"},
	{"light rain", "10d"},
	{"rain", "09d"},
}

// compassPoints are the 16 wind direction buckets at 22.5 degree resolution.
var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Generator produces plausible weather readings for any coordinate and time
// with no external dependency. It never fails; every output is a complete
// reading. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded from the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewGeneratorWithSource returns a Generator using the given random source.
// Tests pass a fixed seed for reproducible output.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Reading generates a synthetic current-conditions reading for the coordinate
// at the given wall-clock time. The coordinate contributes only a small
// deterministic offset; month and hour drive the temperature model.
func (g *Generator) Reading(coord models.Coordinate, now time.Time) models.WeatherReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	hour := now.Hour()
	temp := seasonalBase(now.Month()) + diurnalOffset(hour) + coordVariation(coord) + g.uniform(-10, 10)
	feelsLike := temp + g.uniform(-5, 5)

	cond := conditions[g.rng.Intn(len(conditions))]

	precip := 0.0
	if g.rng.Float64() < 0.3 {
		precip = round2(g.rng.Float64() * 0.5)
	}

	y, m, d := now.Date()
	sunrise := time.Date(y, m, d, 6, 30, 0, 0, now.Location())
	sunset := time.Date(y, m, d, 19, 0, 0, 0, now.Location())

	return models.WeatherReading{
		Temperature:   math.Round(temp),
		FeelsLike:     math.Round(feelsLike),
		Humidity:      40 + g.rng.Intn(41),
		WindSpeed:     math.Round(g.uniform(0, 25)),
		WindDirection: compassPoint(g.uniform(0, 360)),
		Pressure:      round2(g.uniform(29.5, 31.5)),
		Visibility:    math.Round(g.uniform(5, 15)),
		UVIndex:       UVIndex(hour),
		Condition:     cond.text,
		Icon:          cond.icon,
		Precipitation: precip,
		Sunrise:       sunrise,
		Sunset:        sunset,
		LastUpdated:   now,
		Synthetic:     true,
	}
}

// ForecastPeriods generates n forecast periods starting at now, each advanced
// by one simulated day. Used when the live forecast feed is unreachable or
// the coordinate is outside the live coverage area.
func (g *Generator) ForecastPeriods(coord models.Coordinate, now time.Time, n int) []models.ForecastPeriod {
	periods := make([]models.ForecastPeriod, 0, n)
	for i := 0; i < n; i++ {
		start := now.AddDate(0, 0, i)
		reading := g.Reading(coord, start)

		g.mu.Lock()
		pop := g.rng.Intn(101)
		g.mu.Unlock()

		hour := start.Hour()
		periods = append(periods, models.ForecastPeriod{
			StartTime:         start,
			IsDaytime:         hour >= 6 && hour < 18,
			Temperature:       reading.Temperature,
			Condition:         reading.Condition,
			Icon:              reading.Icon,
			PrecipProbability: pop,
			WindSpeed:         reading.WindSpeed,
			Humidity:          reading.Humidity,
		})
	}
	return periods
}

// UVIndex models sun exposure rising through the day: zero before 06:00,
// then (hour-6)/2 rounded.
func UVIndex(hour int) int {
	v := int(math.Round(float64(hour-6) / 2))
	if v < 0 {
		return 0
	}
	return v
}

// seasonalBase returns the baseline temperature (F) for the month.
func seasonalBase(m time.Month) float64 {
	switch m {
	case time.December, time.January, time.February:
		return 45
	case time.March, time.April, time.May:
		return 60
	case time.June, time.July, time.August:
		return 85
	default:
		return 65
	}
}

// diurnalOffset maps hour-of-day onto one full sinusoid cycle, amplitude 15,
// peaking mid-afternoon (hour 15).
func diurnalOffset(hour int) float64 {
	return 15 * math.Sin(2*math.Pi*float64(hour-9)/24)
}

// coordVariation derives a small stable offset from the coordinate so nearby
// requests differ without the coordinate being a strong input.
func coordVariation(c models.Coordinate) float64 {
	return math.Mod(math.Abs(c.Latitude)+math.Abs(c.Longitude), 3)
}

// compassPoint buckets an angle in degrees into one of 16 compass points.
func compassPoint(angle float64) string {
	idx := int(math.Mod(angle+11.25, 360) / 22.5)
	return compassPoints[idx%len(compassPoints)]
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
