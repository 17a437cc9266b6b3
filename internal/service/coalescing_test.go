package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestCoalescer_SingleCaller verifies a lone caller leads and runs fn.
func TestCoalescer_SingleCaller(t *testing.T) {
	c := newCoalescer(time.Second)

	ran := false
	led, err := c.Do(context.Background(), "k", func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !led {
		t.Error("single caller should lead")
	}
	if !ran {
		t.Error("fn did not run")
	}
}

// TestCoalescer_ConcurrentCallersShareOneRun verifies exactly one of many
// concurrent callers runs fn; the rest wait for it.
func TestCoalescer_ConcurrentCallersShareOneRun(t *testing.T) {
	c := newCoalescer(5 * time.Second)

	var runs int32
	var leaders int32
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		led, _ := c.Do(context.Background(), "k", func() error {
			atomic.AddInt32(&runs, 1)
			close(started)
			<-release
			return nil
		})
		if led {
			atomic.AddInt32(&leaders, 1)
		}
	}()

	<-started
	const followers = 8
	for i := 0; i < followers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			led, err := c.Do(context.Background(), "k", func() error {
				atomic.AddInt32(&runs, 1)
				return nil
			})
			if err != nil {
				t.Errorf("follower Do: %v", err)
			}
			if led {
				atomic.AddInt32(&leaders, 1)
			}
		}()
	}

	// Give followers a moment to register as waiters before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("fn ran %d times, want 1", got)
	}
	if got := atomic.LoadInt32(&leaders); got != 1 {
		t.Errorf("leaders = %d, want 1", got)
	}
}

// TestCoalescer_FollowerTimeout verifies a waiting follower gives up when the
// coalescer timeout elapses.
func TestCoalescer_FollowerTimeout(t *testing.T) {
	c := newCoalescer(30 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = c.Do(context.Background(), "k", func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	led, err := c.Do(context.Background(), "k", func() error { return nil })
	if led {
		t.Error("follower should not lead")
	}
	if err == nil {
		t.Error("expected timeout error for follower")
	}
}

// TestCoalescer_DistinctKeysRunIndependently verifies different keys do not
// block each other.
func TestCoalescer_DistinctKeysRunIndependently(t *testing.T) {
	c := newCoalescer(time.Second)

	var runs int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()
			led, err := c.Do(context.Background(), key, func() error {
				atomic.AddInt32(&runs, 1)
				return nil
			})
			if err != nil || !led {
				t.Errorf("key %s: led=%v err=%v, want led=true err=nil", key, led, err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&runs); got != 3 {
		t.Errorf("fn ran %d times, want 3", got)
	}
}
