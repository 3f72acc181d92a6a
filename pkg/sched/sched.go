// Package sched runs background jobs on cron expressions or fixed
// intervals. Cron syntax is validated and evaluated with gronx.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/psychoticproxy/heidi/pkg/logger"
)

type jobKind int

const (
	kindCron jobKind = iota
	kindEvery
)

type job struct {
	name     string
	kind     jobKind
	expr     string
	interval time.Duration
	nextRun  time.Time
	fn       func(ctx context.Context)
}

// Scheduler ticks once a minute for cron jobs and tracks interval jobs on
// their own deadlines. Jobs run on their own goroutines; a slow job never
// delays the others.
type Scheduler struct {
	mu     sync.Mutex
	jobs   []*job
	parser *gronx.Gronx
}

func New() *Scheduler {
	return &Scheduler{parser: gronx.New()}
}

// AddCron registers a job on a cron expression. Empty expression disables
// the job silently so config can opt out.
func (s *Scheduler) AddCron(name, expr string, fn func(ctx context.Context)) error {
	if expr == "" {
		return nil
	}
	if !s.parser.IsValid(expr) {
		return fmt.Errorf("invalid cron expression for %s: %q", name, expr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, kind: kindCron, expr: expr, fn: fn})
	return nil
}

// AddEvery registers a job on a fixed interval. Non-positive interval
// disables the job.
func (s *Scheduler) AddEvery(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{
		name:     name,
		kind:     kindEvery,
		interval: interval,
		nextRun:  time.Now().Add(interval),
		fn:       fn,
	})
}

// Run blocks until ctx is cancelled, firing due jobs each minute tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		due := false
		switch j.kind {
		case kindCron:
			ok, err := s.parser.IsDue(j.expr, now)
			if err != nil {
				logger.WarnCF("sched", "cron evaluation failed", map[string]any{
					"job":   j.name,
					"error": err.Error(),
				})
				continue
			}
			due = ok
		case kindEvery:
			if !now.Before(j.nextRun) {
				due = true
				j.nextRun = now.Add(j.interval)
			}
		}
		if due {
			logger.DebugCF("sched", "job due", map[string]any{"job": j.name})
			go j.fn(ctx)
		}
	}
}
