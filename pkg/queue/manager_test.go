package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastOptions() Options {
	return Options{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MaxAttempts:    3,
		ReloadInterval: time.Hour,
	}
}

func TestManagerEnqueueFeedsNewJobsOnly(t *testing.T) {
	store := newTestQueueStore(t)
	mgr := NewManager(store, func(ctx context.Context, job Job) error { return nil }, fastOptions())
	ctx := context.Background()

	_, inserted, err := mgr.Enqueue(ctx, "u1", "c1", "hello")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !inserted {
		t.Fatal("first enqueue should insert")
	}
	if len(mgr.feed) != 1 {
		t.Fatalf("feed holds %d jobs, want 1", len(mgr.feed))
	}

	_, inserted, err = mgr.Enqueue(ctx, "u1", "c1", "hello")
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if inserted {
		t.Fatal("duplicate should not insert")
	}
	if len(mgr.feed) != 1 {
		t.Fatalf("duplicate fed the worker: feed holds %d jobs", len(mgr.feed))
	}
}

func TestManagerReloadSkipsLoadedJobs(t *testing.T) {
	store := newTestQueueStore(t)
	ctx := context.Background()

	store.Enqueue(ctx, "u1", "c1", "one")
	store.Enqueue(ctx, "u2", "c2", "two")

	mgr := NewManager(store, func(ctx context.Context, job Job) error { return nil }, fastOptions())

	added, err := mgr.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if added != 2 {
		t.Fatalf("first reload added %d, want 2", added)
	}

	added, err = mgr.Reload(ctx)
	if err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if added != 0 {
		t.Fatalf("second reload added %d, want 0", added)
	}
	if len(mgr.feed) != 2 {
		t.Fatalf("feed holds %d jobs, want 2", len(mgr.feed))
	}
}

func TestManagerReloadPicksUpPersistedJobs(t *testing.T) {
	// A job enqueued by a previous process must reach the worker after a
	// restart over the same database file.
	store := newTestQueueStore(t)
	ctx := context.Background()
	store.Enqueue(ctx, "u1", "c1", "from last run")

	mgr := NewManager(store, func(ctx context.Context, job Job) error { return nil }, fastOptions())
	added, err := mgr.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if added != 1 {
		t.Fatalf("added %d, want 1", added)
	}

	job := <-mgr.feed
	if job.Prompt != "from last run" {
		t.Fatalf("job = %+v", job)
	}
}

func TestManagerProcessMarksDeliveredOnSuccess(t *testing.T) {
	store := newTestQueueStore(t)
	ctx := context.Background()

	delivered := 0
	mgr := NewManager(store, func(ctx context.Context, job Job) error {
		delivered++
		return nil
	}, fastOptions())

	job, _, err := mgr.Enqueue(ctx, "u1", "c1", "hello")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	mgr.process(ctx, <-mgr.feed)

	if delivered != 1 {
		t.Fatalf("deliver called %d times, want 1", delivered)
	}
	count, err := store.CountPending(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("pending = %d, want 0 after delivery of %s", count, job.ID)
	}
}

func TestManagerLeavesJobPendingAfterExhaustedAttempts(t *testing.T) {
	store := newTestQueueStore(t)
	ctx := context.Background()

	attempts := 0
	mgr := NewManager(store, func(ctx context.Context, job Job) error {
		attempts++
		return errors.New("channel down")
	}, fastOptions())

	mgr.Enqueue(ctx, "u1", "c1", "hello")
	mgr.process(ctx, <-mgr.feed)

	if attempts != 3 {
		t.Fatalf("deliver attempted %d times, want 3", attempts)
	}
	count, err := store.CountPending(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("pending = %d, want 1: failed jobs stay pending", count)
	}

	// The job was unloaded, so a later reload feeds it again.
	added, err := mgr.Reload(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if added != 1 {
		t.Fatalf("reload after failure added %d, want 1", added)
	}
}

func TestManagerRetriesUntilChannelRecovers(t *testing.T) {
	store := newTestQueueStore(t)
	ctx := context.Background()

	attempts := 0
	mgr := NewManager(store, func(ctx context.Context, job Job) error {
		attempts++
		if attempts < 3 {
			return errors.New("still down")
		}
		return nil
	}, fastOptions())

	mgr.Enqueue(ctx, "u1", "c1", "hello")
	mgr.process(ctx, <-mgr.feed)

	if attempts != 3 {
		t.Fatalf("deliver attempted %d times, want 3", attempts)
	}
	count, _ := store.CountPending(ctx)
	if count != 0 {
		t.Fatalf("pending = %d, want 0", count)
	}
}

func TestManagerClearResetsTracking(t *testing.T) {
	store := newTestQueueStore(t)
	ctx := context.Background()

	mgr := NewManager(store, func(ctx context.Context, job Job) error { return nil }, fastOptions())
	mgr.Enqueue(ctx, "u1", "c1", "one")
	mgr.Enqueue(ctx, "u2", "c2", "two")

	n, err := mgr.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("cleared %d, want 2", n)
	}
	if len(mgr.feed) != 0 {
		t.Fatalf("feed holds %d jobs after clear", len(mgr.feed))
	}

	inMem, durable, err := mgr.PendingCounts(ctx)
	if err != nil {
		t.Fatalf("pending counts: %v", err)
	}
	if inMem != 0 || durable != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", inMem, durable)
	}
}
