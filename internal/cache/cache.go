package cache

import (
	"context"
	"sync"
	"time"

	"github.com/skycastapp/skycast/internal/models"
)

// GridCache stores resolved grid references keyed by rounded coordinate.
// Grid assignments are stable, so entries carry a long TTL; the cache exists
// to avoid a points lookup on every refresh.
type GridCache interface {
	Get(ctx context.Context, key string) (models.GridReference, bool, error)
	Set(ctx context.Context, key string, ref models.GridReference, ttl time.Duration) error
}

// InMemoryCache implements GridCache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	ref       models.GridReference
	expiresAt time.Time
}

// NewInMemoryCache creates an empty in-memory grid cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]entry)}
}

// Get returns the cached grid reference if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.GridReference, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.GridReference{}, false, nil
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return models.GridReference{}, false, nil
	}
	return e.ref, true, nil
}

// Set stores a grid reference with the given TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, ref models.GridReference, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{ref: ref, expiresAt: time.Now().Add(ttl)}
	return nil
}
