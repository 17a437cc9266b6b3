package service

import (
	"context"
	"sync"
	"time"
)

// flight is one in-progress refresh that followers wait on.
type flight struct {
	done chan struct{}
	err  error
}

// coalescer deduplicates concurrent refreshes of the same key. The first
// caller (the leader) runs fn; followers block until it completes and then
// reread the store, so a stale window triggers one upstream fetch.
type coalescer struct {
	mu       sync.Mutex
	inFlight map[string]*flight
	timeout  time.Duration
}

func newCoalescer(timeout time.Duration) *coalescer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &coalescer{
		inFlight: make(map[string]*flight),
		timeout:  timeout,
	}
}

// Do runs fn for key unless a refresh for key is already in flight, in which
// case it waits for that refresh. Returns led=true when this caller ran fn.
// Waiting respects ctx and the coalescer timeout.
func (c *coalescer) Do(ctx context.Context, key string, fn func() error) (led bool, err error) {
	c.mu.Lock()
	if f, ok := c.inFlight[key]; ok {
		c.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		select {
		case <-f.done:
			return false, f.err
		case <-waitCtx.Done():
			return false, waitCtx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	c.inFlight[key] = f
	c.mu.Unlock()

	f.err = fn()

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()
	close(f.done)

	return true, f.err
}
