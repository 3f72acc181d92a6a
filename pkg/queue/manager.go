package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psychoticproxy/heidi/pkg/logger"
	"github.com/psychoticproxy/heidi/pkg/retry"
)

// DeliverFunc produces and sends the reply for one deferred job. It must
// return nil only once the reply has actually been handed to the channel.
type DeliverFunc func(ctx context.Context, job Job) error

// Options tunes the delivery worker.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	ReloadInterval time.Duration
}

func defaultOptions() Options {
	return Options{
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     120 * time.Second,
		MaxAttempts:    5,
		ReloadInterval: 60 * time.Second,
	}
}

// Manager feeds pending jobs from the store through an in-memory channel
// to a single delivery worker. Jobs already handed to the worker are
// tracked by id so the periodic reload never duplicates an in-flight job.
type Manager struct {
	store   *Store
	deliver DeliverFunc
	opts    Options

	feed chan Job

	mu     sync.Mutex
	loaded map[string]struct{}
}

func NewManager(store *Store, deliver DeliverFunc, opts Options) *Manager {
	def := defaultOptions()
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = def.MaxBackoff
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = def.ReloadInterval
	}
	return &Manager{
		store:   store,
		deliver: deliver,
		opts:    opts,
		feed:    make(chan Job, 256),
		loaded:  make(map[string]struct{}),
	}
}

// Enqueue persists a deferred reply and, when it is new, feeds it to the
// worker immediately. Duplicate pending triples are absorbed by the store.
func (m *Manager) Enqueue(ctx context.Context, userID, channelID, prompt string) (Job, bool, error) {
	job, inserted, err := m.store.Enqueue(ctx, userID, channelID, prompt)
	if err != nil {
		return Job{}, false, err
	}
	if inserted {
		m.offer(job)
	}
	logger.DebugCF("queue", "enqueued deferred reply", map[string]any{
		"job_id":   job.ID,
		"user_id":  userID,
		"inserted": inserted,
	})
	return job, inserted, nil
}

// Reload pulls pending jobs from the store into the feed, skipping any id
// already loaded this process lifetime. Called at startup and periodically
// so jobs that exhausted their attempts get another round.
func (m *Manager) Reload(ctx context.Context) (int, error) {
	jobs, err := m.store.PendingJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload queue: %w", err)
	}

	added := 0
	for _, job := range jobs {
		if m.offer(job) {
			added++
		}
	}
	if added > 0 {
		logger.InfoCF("queue", "reloaded pending jobs", map[string]any{"count": added})
	}
	return added, nil
}

// offer marks the job loaded and pushes it to the feed. Reports false when
// the job was already in flight or the feed is full.
func (m *Manager) offer(job Job) bool {
	m.mu.Lock()
	if _, ok := m.loaded[job.ID]; ok {
		m.mu.Unlock()
		return false
	}
	m.loaded[job.ID] = struct{}{}
	m.mu.Unlock()

	select {
	case m.feed <- job:
		return true
	default:
		// Feed full: unload so the next reload retries this job.
		m.unload(job.ID)
		return false
	}
}

func (m *Manager) unload(id string) {
	m.mu.Lock()
	delete(m.loaded, id)
	m.mu.Unlock()
}

// Run drains the feed until ctx is cancelled, reloading pending jobs on a
// timer. Blocks; run it on its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	if _, err := m.Reload(ctx); err != nil {
		logger.WarnCF("queue", "initial reload failed", map[string]any{"error": err.Error()})
	}

	ticker := time.NewTicker(m.opts.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reload(ctx); err != nil {
				logger.WarnCF("queue", "reload failed", map[string]any{"error": err.Error()})
			}
		case job := <-m.feed:
			m.process(ctx, job)
		}
	}
}

// process attempts delivery with exponential backoff. The job is marked
// delivered only after the deliver callback succeeds; when every attempt
// fails the job stays pending and is unloaded for a later reload.
func (m *Manager) process(ctx context.Context, job Job) {
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  m.opts.MaxAttempts,
		InitialDelay: m.opts.InitialBackoff,
		MaxDelay:     m.opts.MaxBackoff,
	}, func() error {
		return m.deliver(ctx, job)
	})
	if err != nil {
		logger.WarnCF("queue", "job delivery exhausted attempts, leaving pending", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		m.unload(job.ID)
		return
	}

	if err := m.store.MarkDelivered(ctx, job.ID); err != nil {
		logger.ErrorCF("queue", "mark delivered failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
	logger.InfoCF("queue", "job delivered", map[string]any{"job_id": job.ID})
}

// PendingCounts reports in-memory and durable pending counts.
func (m *Manager) PendingCounts(ctx context.Context) (inMemory, durable int, err error) {
	durable, err = m.store.CountPending(ctx)
	return len(m.feed), durable, err
}

// Clear drops pending jobs from the store and resets in-flight tracking.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	n, err := m.store.Clear(ctx)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.loaded = make(map[string]struct{})
	m.mu.Unlock()
	for {
		select {
		case <-m.feed:
		default:
			return n, nil
		}
	}
}
