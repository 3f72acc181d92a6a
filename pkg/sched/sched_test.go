package sched

import (
	"context"
	"testing"
	"time"
)

func TestAddCronRejectsInvalidExpression(t *testing.T) {
	s := New()
	if err := s.AddCron("bad", "not a cron", func(ctx context.Context) {}); err == nil {
		t.Fatal("invalid expression should be rejected")
	}
	if err := s.AddCron("good", "0 4 * * *", func(ctx context.Context) {}); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
}

func TestAddCronEmptyExpressionDisablesJob(t *testing.T) {
	s := New()
	if err := s.AddCron("disabled", "", func(ctx context.Context) {
		t.Fatal("disabled job must never fire")
	}); err != nil {
		t.Fatalf("empty expression: %v", err)
	}
	if len(s.jobs) != 0 {
		t.Fatalf("disabled job was registered: %d jobs", len(s.jobs))
	}
}

func TestFireDueRunsCronJobAtMatchingMinute(t *testing.T) {
	s := New()
	fired := make(chan struct{}, 1)
	if err := s.AddCron("daily", "30 4 * * *", func(ctx context.Context) {
		fired <- struct{}{}
	}); err != nil {
		t.Fatalf("add cron: %v", err)
	}

	s.fireDue(context.Background(), time.Date(2025, 6, 1, 4, 29, 0, 0, time.UTC))
	select {
	case <-fired:
		t.Fatal("job fired a minute early")
	case <-time.After(50 * time.Millisecond):
	}

	s.fireDue(context.Background(), time.Date(2025, 6, 1, 4, 30, 0, 0, time.UTC))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("job did not fire at its minute")
	}
}

func TestFireDueRunsIntervalJobs(t *testing.T) {
	s := New()
	fired := make(chan struct{}, 2)
	s.AddEvery("fast", time.Minute, func(ctx context.Context) {
		fired <- struct{}{}
	})
	s.AddEvery("disabled", 0, func(ctx context.Context) {
		t.Fatal("non-positive interval must never fire")
	})

	// First deadline is one interval after registration.
	s.fireDue(context.Background(), time.Now())
	select {
	case <-fired:
		t.Fatal("interval job fired before its first deadline")
	case <-time.After(50 * time.Millisecond):
	}

	s.fireDue(context.Background(), time.Now().Add(2*time.Minute))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("interval job did not fire past its deadline")
	}
}
