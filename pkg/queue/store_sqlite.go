package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists deferred replies in their own database, separate from
// conversation memory, so the queue can be wiped without touching history.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs(status, created_at_ms);`,
		`CREATE INDEX IF NOT EXISTS jobs_triple_idx ON jobs(user_id, channel_id, status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init queue schema: %w", err)
		}
	}
	return nil
}

// Enqueue records a deferred reply. Enqueueing the same (user, channel,
// prompt) triple while a pending job for it exists is a no-op: the
// existing job is returned and inserted reports false.
func (s *Store) Enqueue(ctx context.Context, userID, channelID, prompt string) (Job, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var existing Job
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, channel_id, prompt, status, created_at_ms FROM jobs
		 WHERE user_id = ? AND channel_id = ? AND prompt = ? AND status = ?`,
		userID, channelID, prompt, StatusPending,
	).Scan(&existing.ID, &existing.UserID, &existing.ChannelID, &existing.Prompt, &existing.Status, &existing.CreatedAt)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, fmt.Errorf("check pending job: %w", err)
	}

	job := Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChannelID: channelID,
		Prompt:    prompt,
		Status:    StatusPending,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, channel_id, prompt, status, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.UserID, job.ChannelID, job.Prompt, job.Status, job.CreatedAt,
	)
	if err != nil {
		return Job{}, false, fmt.Errorf("insert job: %w", err)
	}
	return job, true, nil
}

// PendingJobs returns every pending job, oldest first.
func (s *Store) PendingJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, channel_id, prompt, status, created_at_ms FROM jobs
		 WHERE status = ? ORDER BY created_at_ms ASC, id ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.ChannelID, &j.Prompt, &j.Status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkDelivered flips a job to delivered. Called only after the reply has
// actually been handed to the channel adapter.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?`, StatusDelivered, id,
	)
	if err != nil {
		return fmt.Errorf("mark job delivered: %w", err)
	}
	return nil
}

// CountPending reports how many jobs still await delivery.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = ?`, StatusPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

// Clear drops every pending job.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
