package forecast

import (
	"github.com/skycastapp/skycast/internal/models"
)

const (
	maxDailyEntries  = 5
	maxHourlyEntries = 8
)

// dayNightSpread approximates the gap between a period's display temperature
// and the opposite end of its day when the feed carries one temperature per
// period.
const dayNightSpread = 15.0

// DailySummaries reduces a raw period feed to one entry per distinct local
// calendar date, keeping the first period seen for each date in feed order
// and stopping at five dates. Fewer distinct dates yield fewer entries.
func DailySummaries(periods []models.ForecastPeriod) []models.ForecastEntry {
	entries := make([]models.ForecastEntry, 0, maxDailyEntries)
	seen := make(map[string]struct{}, maxDailyEntries)

	for _, p := range periods {
		date := p.StartTime.Format("2006-01-02")
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}

		high, low := spread(p)
		entries = append(entries, models.ForecastEntry{
			Date:              date,
			High:              high,
			Low:               low,
			Condition:         p.Condition,
			Icon:              p.Icon,
			PrecipProbability: p.PrecipProbability,
			WindSpeed:         p.WindSpeed,
			Humidity:          p.Humidity,
		})
		if len(entries) == maxDailyEntries {
			break
		}
	}
	return entries
}

// HourlySummaries projects the first eight periods of the feed verbatim onto
// the hourly display shape. Shorter feeds yield fewer entries.
func HourlySummaries(periods []models.ForecastPeriod) []models.HourlyEntry {
	n := len(periods)
	if n > maxHourlyEntries {
		n = maxHourlyEntries
	}
	entries := make([]models.HourlyEntry, 0, n)
	for _, p := range periods[:n] {
		entries = append(entries, models.HourlyEntry{
			Timestamp:         p.StartTime,
			Temperature:       p.Temperature,
			Condition:         p.Condition,
			Icon:              p.Icon,
			PrecipProbability: p.PrecipProbability,
			WindSpeed:         p.WindSpeed,
		})
	}
	return entries
}

// spread derives a high/low pair from a single-temperature period: a daytime
// temperature reads as the high, a nighttime one as the low.
func spread(p models.ForecastPeriod) (high, low float64) {
	if p.IsDaytime {
		return p.Temperature, p.Temperature - dayNightSpread
	}
	return p.Temperature + dayNightSpread, p.Temperature
}
