package lifecycle

import "testing"

func TestShuttingDownFlag(t *testing.T) {
	t.Cleanup(func() { SetShuttingDown(false) })

	if IsShuttingDown() {
		t.Fatal("flag set before any SetShuttingDown")
	}
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Fatal("flag not set")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Fatal("flag not cleared")
	}
}
