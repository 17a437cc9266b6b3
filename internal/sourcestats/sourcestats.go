package sourcestats

import (
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordLive records a successful live upstream resolution.
func RecordLive() {
	defaultTracker.RecordLive()
}

// RecordFallback records an in-coverage request that had to be served
// synthetically because the live path failed. Out-of-coverage synthetic
// serves are the normal route for those coordinates and are not recorded.
func RecordFallback() {
	defaultTracker.RecordFallback()
}

// FallbackRate returns (fallbackCount, totalCount) within the window.
func FallbackRate(window time.Duration) (fallbacks, total int) {
	return defaultTracker.FallbackRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of live vs fallback outcome timestamps.
// The health endpoint reports degraded when the fallback share in the window
// breaches the configured threshold.
type Tracker struct {
	mu            sync.Mutex
	liveTimes     []time.Time
	fallbackTimes []time.Time
}

// RecordLive records a live upstream success in the tracker.
func (t *Tracker) RecordLive() {
	t.record(&t.liveTimes)
}

// RecordFallback records a masked upstream failure in the tracker.
func (t *Tracker) RecordFallback() {
	t.record(&t.fallbackTimes)
}

// FallbackRate returns (fallbackCount, totalCount) within the window.
func (t *Tracker) FallbackRate(window time.Duration) (fallbacks, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.pruneLocked(now)
	cutoff := now.Add(-window)
	live := countSince(t.liveTimes, cutoff)
	fallbacks = countSince(t.fallbackTimes, cutoff)
	return fallbacks, live + fallbacks
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.liveTimes = nil
	t.fallbackTimes = nil
}

func (t *Tracker) record(times *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*times = append(*times, now)
	t.pruneLocked(now)
}

// pruneLocked drops entries older than the longest window anyone queries.
// One hour is comfortably beyond the health check windows in use.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	t.liveTimes = dropBefore(t.liveTimes, cutoff)
	t.fallbackTimes = dropBefore(t.fallbackTimes, cutoff)
}

func dropBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(times); i++ {
		if !times[i].Before(cutoff) {
			break
		}
	}
	return times[i:]
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}
