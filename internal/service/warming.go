package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/models"
)

// Warmer prefetches weather for a set of locations so first requests after
// startup hit warm records.
type Warmer struct {
	svc    *WeatherService
	logger *zap.Logger
}

// NewWarmer creates a Warmer over the given service.
func NewWarmer(svc *WeatherService, logger *zap.Logger) *Warmer {
	return &Warmer{svc: svc, logger: logger}
}

// Warm fetches weather for each location concurrently. Returns an aggregated
// error if any location failed.
func (w *Warmer) Warm(ctx context.Context, locations []models.Location) error {
	start := time.Now()
	if w.logger != nil {
		w.logger.Info("warming weather records", zap.Int("locations", len(locations)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(locations))
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := w.svc.GetWeather(ctx, loc.ID); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", loc.Name, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("warm-up complete",
			zap.Int("locations", len(locations)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("warm-up: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, locations []models.Location, interval time.Duration) error {
	if err := w.Warm(ctx, locations); err != nil && w.logger != nil {
		w.logger.Warn("initial warm-up failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, locations); err != nil && w.logger != nil {
				w.logger.Warn("periodic warm-up failed", zap.Error(err))
			}
		}
	}
}
