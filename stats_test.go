package godb

import "testing"

func TestAccessStatsTouchIncreasesEstimate(t *testing.T) {
	stats := NewAccessStats()
	pid := PageId{Table: "t", PageNo: 1}
	other := PageId{Table: "t", PageNo: 2}

	if got := stats.EstimatedTouches(pid); got != 0 {
		t.Fatalf("expected 0 touches before any Touch call, got %d", got)
	}
	for i := 0; i < 10; i++ {
		stats.Touch(pid)
	}
	if got := stats.EstimatedTouches(pid); got < 10 {
		t.Fatalf("a count-min sketch only over-estimates, expected >= 10 touches, got %d", got)
	}
	if got := stats.EstimatedTouches(other); got > stats.EstimatedTouches(pid) {
		t.Fatalf("an untouched page should not out-count a heavily touched one")
	}
}

func TestAccessStatsNilReceiverIsSafe(t *testing.T) {
	var stats *AccessStats
	stats.Touch(PageId{Table: "t", PageNo: 0})
	if got := stats.EstimatedTouches(PageId{Table: "t", PageNo: 0}); got != 0 {
		t.Fatalf("nil *AccessStats must behave as a no-op, got %d", got)
	}
}
