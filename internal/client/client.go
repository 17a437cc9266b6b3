package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skycastapp/skycast/internal/models"
	"github.com/skycastapp/skycast/internal/observability"
)

// WeatherAPI is the upstream geophysical weather service boundary. All calls
// can fail; the gateway layer decides how failures degrade.
type WeatherAPI interface {
	LookupGrid(ctx context.Context, coord models.Coordinate) (models.GridReference, error)
	FetchForecast(ctx context.Context, forecastURL string) ([]models.ForecastPeriod, error)
	FetchAlerts(ctx context.Context, coord models.Coordinate) ([]models.WeatherAlert, error)
}

var (
	// ErrNotCovered is returned when the upstream has no grid for the coordinate.
	ErrNotCovered = errors.New("coordinate not covered by upstream grid")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrUpstreamFailure is returned on 5xx and other non-success statuses.
	ErrUpstreamFailure = errors.New("upstream failure")
)

// GridClient talks to the national weather grid API (points, gridpoint
// forecast, active alerts).
type GridClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

// NewGridClient creates a GridClient. userAgent is required by the upstream's
// usage policy and identifies this deployment.
func NewGridClient(baseURL, userAgent string, timeout time.Duration) (*GridClient, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("user agent is required")
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &GridClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type pointsResponse struct {
	Properties struct {
		GridID   string `json:"gridId"`
		GridX    int    `json:"gridX"`
		GridY    int    `json:"gridY"`
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			StartTime     string  `json:"startTime"`
			IsDaytime     bool    `json:"isDaytime"`
			Temperature   float64 `json:"temperature"`
			WindSpeed     string  `json:"windSpeed"`
			ShortForecast string  `json:"shortForecast"`

			ProbabilityOfPrecipitation struct {
				Value *int `json:"value"`
			} `json:"probabilityOfPrecipitation"`
			RelativeHumidity struct {
				Value *int `json:"value"`
			} `json:"relativeHumidity"`
		} `json:"periods"`
	} `json:"properties"`
}

type alertsResponse struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Event       string `json:"event"`
			Severity    string `json:"severity"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			Onset       string `json:"onset"`
			Expires     string `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

// LookupGrid resolves a coordinate to its grid reference via the points
// endpoint. Coordinates are truncated to 4 decimal places per upstream rules.
func (c *GridClient) LookupGrid(ctx context.Context, coord models.Coordinate) (models.GridReference, error) {
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, coord.Latitude, coord.Longitude)

	var resp pointsResponse
	if err := c.getJSON(ctx, "points", url, &resp); err != nil {
		return models.GridReference{}, err
	}
	if resp.Properties.Forecast == "" {
		return models.GridReference{}, fmt.Errorf("%w: points response missing forecast URL", ErrUpstreamFailure)
	}
	return models.GridReference{
		Office:      resp.Properties.GridID,
		GridX:       resp.Properties.GridX,
		GridY:       resp.Properties.GridY,
		ForecastURL: resp.Properties.Forecast,
	}, nil
}

// FetchForecast retrieves the multi-period forecast feed from a grid's
// forecast URL and maps it to the internal period shape.
func (c *GridClient) FetchForecast(ctx context.Context, forecastURL string) ([]models.ForecastPeriod, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, "forecast", forecastURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.Properties.Periods) == 0 {
		return nil, fmt.Errorf("%w: forecast feed has no periods", ErrUpstreamFailure)
	}

	periods := make([]models.ForecastPeriod, 0, len(resp.Properties.Periods))
	for _, p := range resp.Properties.Periods {
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			continue // malformed period, skip rather than fail the feed
		}
		pop := 0
		if p.ProbabilityOfPrecipitation.Value != nil {
			pop = *p.ProbabilityOfPrecipitation.Value
		}
		humidity := 0
		if p.RelativeHumidity.Value != nil {
			humidity = *p.RelativeHumidity.Value
		}
		periods = append(periods, models.ForecastPeriod{
			StartTime:         start,
			IsDaytime:         p.IsDaytime,
			Temperature:       p.Temperature,
			Condition:         p.ShortForecast,
			Icon:              IconForForecast(p.ShortForecast, p.IsDaytime),
			PrecipProbability: pop,
			WindSpeed:         parseWindSpeed(p.WindSpeed),
			Humidity:          humidity,
		})
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: no parseable forecast periods", ErrUpstreamFailure)
	}
	return periods, nil
}

// FetchAlerts retrieves active alerts for the coordinate's point.
func (c *GridClient) FetchAlerts(ctx context.Context, coord models.Coordinate) ([]models.WeatherAlert, error) {
	url := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", c.baseURL, coord.Latitude, coord.Longitude)

	var resp alertsResponse
	if err := c.getJSON(ctx, "alerts", url, &resp); err != nil {
		return nil, err
	}

	alerts := make([]models.WeatherAlert, 0, len(resp.Features))
	for _, f := range resp.Features {
		onset, _ := time.Parse(time.RFC3339, f.Properties.Onset)
		expires, _ := time.Parse(time.RFC3339, f.Properties.Expires)
		alerts = append(alerts, models.WeatherAlert{
			ID:          f.ID,
			Event:       f.Properties.Event,
			Severity:    f.Properties.Severity,
			Headline:    f.Properties.Headline,
			Description: f.Properties.Description,
			Onset:       onset,
			Expires:     expires,
		})
	}
	return alerts, nil
}

// getJSON performs one GET round trip with timeout, metrics, and status
// classification, decoding the body into out on success.
func (c *GridClient) getJSON(ctx context.Context, op, url string, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(op, "error").Inc()
		observability.UpstreamCallDuration.WithLabelValues(op, "error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(op, status).Inc()
	observability.UpstreamCallDuration.WithLabelValues(op, status).Observe(duration)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	return nil
}

// classifyStatus maps an HTTP status to the client error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotCovered)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
}

// parseWindSpeed extracts the leading speed from upstream text like
// "10 mph" or "10 to 15 mph". Returns 0 when unparseable.
func parseWindSpeed(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}

// IconForForecast derives an icon code from upstream short-forecast text.
// The upstream serves icon URLs, not codes, so a keyword mapping keeps the
// icon field consistent with the synthetic generator's codes.
func IconForForecast(text string, daytime bool) string {
	suffix := "d"
	if !daytime {
		suffix = "n"
	}
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "thunder"):
		return "11" + suffix
	case strings.Contains(t, "snow") || strings.Contains(t, "sleet") || strings.Contains(t, "ice"):
		return "13" + suffix
	case strings.Contains(t, "shower"):
		return "09" + suffix
	case strings.Contains(t, "rain") || strings.Contains(t, "drizzle"):
		return "10" + suffix
	case strings.Contains(t, "fog") || strings.Contains(t, "haze"):
		return "50" + suffix
	case strings.Contains(t, "partly"):
		return "02" + suffix
	case strings.Contains(t, "mostly cloudy"):
		return "03" + suffix
	case strings.Contains(t, "cloud") || strings.Contains(t, "overcast"):
		return "04" + suffix
	default:
		return "01" + suffix
	}
}

// extractCorrelationID pulls the request correlation id from context when the
// HTTP layer has attached one.
func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

// statusLabel buckets HTTP status codes into stable metric labels.
func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == 429:
		return "rate_limited"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	default:
		return "error"
	}
}
