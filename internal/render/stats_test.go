package render

import (
	"errors"
	"testing"
	"time"
)

func TestStatsSnapshot(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int{500, 100, 400, 200, 300} {
		stats.Record(time.Duration(ms)*time.Millisecond, nil)
	}
	stats.Record(9*time.Second, &RenderError{Op: "render", Err: errors.New("parse error")})
	stats.Record(time.Second, errors.New("boom"))

	snap := stats.Snapshot()
	if snap.Renders != 7 || snap.Failed != 2 {
		t.Fatalf("expected 7 renders and 2 failures, got %+v", snap)
	}
	if snap.FailedOps["render"] != 1 || snap.FailedOps["other"] != 1 {
		t.Errorf("unexpected failures by op %v", snap.FailedOps)
	}
	if snap.P50Ms != 300 || snap.P95Ms != 500 || snap.MaxMs != 500 {
		t.Errorf("expected p50=300 p95=500 max=500, got %+v", snap)
	}
}

func TestStatsNearestRank(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		pct  int
		want time.Duration
	}{
		{0, 1},
		{10, 1},
		{50, 5},
		{51, 6},
		{95, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := nearestRank(sorted, tt.pct); got != tt.want {
			t.Errorf("p%d: expected %d, got %d", tt.pct, tt.want, got)
		}
	}
}

func TestStatsWindow(t *testing.T) {
	stats := NewStats(10 * time.Millisecond)
	stats.Record(100*time.Millisecond, nil)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Renders != 0 {
		t.Fatalf("expected no renders after the window, got %d", snap.Renders)
	}

	stats.Record(200*time.Millisecond, nil)
	if snap := stats.Snapshot(); snap.Renders != 1 || snap.MaxMs != 200 {
		t.Fatalf("expected one 200ms render, got %+v", snap)
	}
}

func TestStatsCapacity(t *testing.T) {
	stats := NewStats(time.Hour)
	for range statsCapacity + 10 {
		stats.Record(time.Millisecond, nil)
	}
	stats.Record(time.Second, nil)

	snap := stats.Snapshot()
	if snap.Renders != statsCapacity {
		t.Errorf("expected %d renders, got %d", statsCapacity, snap.Renders)
	}
	if snap.MaxMs != 1000 {
		t.Errorf("expected newest sample kept, got max %d", snap.MaxMs)
	}
}

func TestStatsNil(t *testing.T) {
	var stats *Stats
	stats.Record(time.Second, nil)
	if snap := stats.Snapshot(); snap.Renders != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}
