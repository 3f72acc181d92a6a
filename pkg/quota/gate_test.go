package quota

import (
	"sync"
	"testing"
	"time"
)

func TestGateEnforcesDailyLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewGateAt(3, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !g.Allow() {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if g.Allow() {
		t.Fatal("call past the limit should be denied")
	}

	used, limit, _ := g.Usage()
	if used != 3 || limit != 3 {
		t.Fatalf("usage = %d/%d, want 3/3", used, limit)
	}
}

func TestGateResetsAtUTCMidnight(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	g := NewGateAt(2, func() time.Time { return now })

	g.Allow()
	g.Allow()
	if g.Allow() {
		t.Fatal("limit should be exhausted before midnight")
	}

	now = time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)
	if !g.Allow() {
		t.Fatal("first call after midnight should be allowed")
	}

	used, _, resetAt := g.Usage()
	if used != 1 {
		t.Fatalf("used after reset = %d, want 1", used)
	}
	wantReset := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	if !resetAt.Equal(wantReset) {
		t.Fatalf("resetAt = %v, want %v", resetAt, wantReset)
	}
}

func TestGateRollsMultipleDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewGateAt(1, func() time.Time { return now })
	g.Allow()

	// Idle for three days: window rolls forward, counter resets once.
	now = now.Add(72 * time.Hour)
	if !g.Allow() {
		t.Fatal("call after multi-day gap should be allowed")
	}
	_, _, resetAt := g.Usage()
	if !resetAt.After(now) {
		t.Fatalf("resetAt %v should be in the future relative to %v", resetAt, now)
	}
}

func TestGateNeverOverCountsConcurrently(t *testing.T) {
	g := NewGate(50)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- g.Allow()
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Fatalf("allowed %d calls, want exactly 50", count)
	}
}
