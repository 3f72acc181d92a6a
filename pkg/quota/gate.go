// Package quota enforces a rolling daily cap on outbound model calls.
package quota

import (
	"sync"
	"time"
)

// Gate tracks a daily counter of outbound model calls. The window resets at
// the next UTC midnight after the last reset. Check-and-increment is a
// single critical section: concurrent callers (interactive replies, queue
// worker, scheduled jobs) never over-count past the limit.
type Gate struct {
	mu      sync.Mutex
	limit   int
	used    int
	resetAt time.Time
	now     func() time.Time
}

func NewGate(limit int) *Gate {
	return NewGateAt(limit, time.Now)
}

// NewGateAt injects the clock; tests advance it to cross reset boundaries.
func NewGateAt(limit int, now func() time.Time) *Gate {
	if limit <= 0 {
		limit = 1
	}
	g := &Gate{limit: limit, now: now}
	g.resetAt = nextUTCMidnight(now())
	return g
}

// Allow reports whether one more model call may be made, consuming a slot
// when it returns true.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindow()
	if g.used >= g.limit {
		return false
	}
	g.used++
	return true
}

// Usage returns the consumed count, the limit and the next reset time.
func (g *Gate) Usage() (used, limit int, resetAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindow()
	return g.used, g.limit, g.resetAt
}

func (g *Gate) rollWindow() {
	now := g.now()
	for !now.Before(g.resetAt) {
		g.used = 0
		g.resetAt = g.resetAt.Add(24 * time.Hour)
	}
}

func nextUTCMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
