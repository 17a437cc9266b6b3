package http

import (
	"context"
	"testing"
	"time"
)

func TestInFlightTracker_Counting(t *testing.T) {
	tr := &InFlightTracker{}

	tr.Increment()
	tr.Increment()
	if got := tr.Count(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	tr.Decrement()
	if got := tr.Count(); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tr := &InFlightTracker{}
	tr.Increment()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tr.Decrement()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.WaitForZero(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("WaitForZero: %v", err)
	}
}

func TestInFlightTracker_WaitForZeroTimeout(t *testing.T) {
	tr := &InFlightTracker{}
	tr.Increment()
	defer tr.Decrement()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := tr.WaitForZero(ctx, 5*time.Millisecond); err == nil {
		t.Fatal("expected context deadline error while count is nonzero")
	}
}
