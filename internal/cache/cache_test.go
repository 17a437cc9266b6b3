package cache

import (
	"context"
	"testing"
	"time"

	"github.com/skycastapp/skycast/internal/models"
)

var testRef = models.GridReference{
	Office:      "OKX",
	GridX:       33,
	GridY:       35,
	ForecastURL: "https://api.weather.gov/gridpoints/OKX/33,35/forecast",
}

// TestInMemoryCache_SetGet verifies the basic round trip.
func TestInMemoryCache_SetGet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "40.7128,-74.0060", testRef, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ref, ok, err := c.Get(ctx, "40.7128,-74.0060")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("entry not found")
	}
	if ref != testRef {
		t.Errorf("ref = %+v, want %+v", ref, testRef)
	}
}

// TestInMemoryCache_Miss verifies an unknown key is a clean miss.
func TestInMemoryCache_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("unexpected hit for unknown key")
	}
}

// TestInMemoryCache_Expiry verifies expired entries read as misses.
func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", testRef, 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("expired entry served as hit")
	}
}

// TestInMemoryCache_Overwrite verifies Set replaces an existing entry.
func TestInMemoryCache_Overwrite(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", testRef, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	updated := testRef
	updated.GridX = 34
	if err := c.Set(ctx, "k", updated, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ref, ok, _ := c.Get(ctx, "k")
	if !ok || ref.GridX != 34 {
		t.Errorf("ref = %+v ok=%v, want updated GridX", ref, ok)
	}
}
