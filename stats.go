package godb

import (
	"fmt"
	"sync"

	boom "github.com/tylertreat/BoomFilters"
)

// AccessStats is an advisory, approximate per-page touch counter. It is
// fed from BufferPool.GetPage but never consulted by eviction or
// locking -- losing it, or getting a count wrong by the sketch's error
// bound, never affects correctness. It exists so an operator can ask
// "which pages are hot" without the buffer pool paying for an exact
// count per PageId.
//
// GetPage calls Touch once per fetch from any transaction's goroutine,
// outside the buffer pool's own monitor, so the sketch needs its own
// lock: BoomFilters' CountMinSketch mutates internal counters in place
// and isn't safe for concurrent use on its own.
type AccessStats struct {
	mu     sync.Mutex
	sketch *boom.CountMinSketch
}

// NewAccessStats builds a sketch sized for epsilon relative error with
// confidence 1-delta. 0.001/0.01 is generous enough for a teaching
// workload's page count while staying tiny in memory.
func NewAccessStats() *AccessStats {
	return &AccessStats{sketch: boom.NewCountMinSketch(0.001, 0.01)}
}

func pageIdKey(pid PageId) []byte {
	return []byte(fmt.Sprintf("%s:%d", pid.Table, pid.PageNo))
}

// Touch records one access to pid. Safe for concurrent use.
func (a *AccessStats) Touch(pid PageId) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sketch.Add(pageIdKey(pid))
}

// EstimatedTouches returns the sketch's (possibly over-) estimate of how
// many times pid has been touched. Safe for concurrent use.
func (a *AccessStats) EstimatedTouches(pid PageId) uint64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sketch.Count(pageIdKey(pid))
}
