package lettergate_test

import (
	"testing"
	"time"

	"github.com/mihaimyh/lettergate/pkg/lettergate"
)

func TestWindowFor(t *testing.T) {
	// A moment late in the day in a non-UTC zone
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2025, 6, 11, 2, 30, 0, 0, loc) // 2025-06-10 21:30 UTC

	window := lettergate.WindowFor(now)

	wantStart := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if !window.Start.Equal(wantStart) {
		t.Errorf("Expected window start %v, got %v", wantStart, window.Start)
	}
	if !window.End.Equal(wantStart.Add(24 * time.Hour)) {
		t.Errorf("Expected 24h window, got end %v", window.End)
	}
	if window.Key() != "2025-06-10" {
		t.Errorf("Expected key 2025-06-10, got %s", window.Key())
	}
}

func TestWindowFor_MidnightBoundary(t *testing.T) {
	before := time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC)
	after := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	if lettergate.WindowFor(before).Key() == lettergate.WindowFor(after).Key() {
		t.Error("Expected midnight to separate windows")
	}
	if lettergate.WindowFor(after).Key() != "2025-06-11" {
		t.Errorf("Expected key 2025-06-11, got %s", lettergate.WindowFor(after).Key())
	}
}
