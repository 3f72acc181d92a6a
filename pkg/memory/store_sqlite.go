package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the canonical persistent conversation storage.
type SQLiteStore struct {
	db *sql.DB
	// writeMu serializes writers above the driver so interleaved
	// append+prune pairs stay atomic with respect to each other.
	writeMu sync.Mutex

	turnCap int
}

// NewSQLiteStore creates/opens the memory database at path. turnCap bounds
// the turns table; defaultPersona seeds the persona row on first run.
func NewSQLiteStore(path string, turnCap int, defaultPersona string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if turnCap <= 0 {
		turnCap = 500_000
	}
	store := &SQLiteStore{db: db, turnCap: turnCap}
	if err := store.init(defaultPersona); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(defaultPersona string) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			guild_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS turns_pair_idx ON turns(user_id, channel_id, id DESC);`,
		`CREATE INDEX IF NOT EXISTS turns_guild_idx ON turns(guild_id, id DESC);`,
		`CREATE TABLE IF NOT EXISTS pair_summaries (
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY(user_id, channel_id)
		);`,
		`CREATE TABLE IF NOT EXISTS guild_summaries (
			guild_id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS context_hints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS context_hints_pair_idx ON context_hints(user_id, channel_id, id DESC);`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			last_seen_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS persona (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			text TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init memory schema: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO persona (id, text, updated_at_ms) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		defaultPersona, nowMS(),
	)
	if err != nil {
		return fmt.Errorf("seed persona: %w", err)
	}
	return nil
}

// AppendTurn records one turn and prunes the oldest rows once the table
// exceeds the cap. The count is taken fresh after the insert so the bound
// holds regardless of interleaving.
func (s *SQLiteStore) AppendTurn(ctx context.Context, t Turn) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (user_id, channel_id, guild_id, role, text, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.ChannelID, t.GuildID, t.Role, t.Text, createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count); err != nil {
		return fmt.Errorf("count turns: %w", err)
	}
	if excess := count - s.turnCap; excess > 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM turns WHERE id IN (SELECT id FROM turns ORDER BY id ASC LIMIT ?)`,
			excess,
		)
		if err != nil {
			return fmt.Errorf("prune turns: %w", err)
		}
	}
	return nil
}

// RecentTurns returns the latest limit turns for a pair in chronological
// order: the suffix of the conversation, oldest of the window first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, userID, channelID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, channel_id, guild_id, role, text, created_at_ms
		 FROM turns WHERE user_id = ? AND channel_id = ?
		 ORDER BY id DESC LIMIT ?`,
		userID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	reverseTurns(turns)
	return turns, nil
}

// RecentGuildTurns returns the latest limit turns across a guild, oldest
// of the window first. Feeds guild summarization.
func (s *SQLiteStore) RecentGuildTurns(ctx context.Context, guildID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, channel_id, guild_id, role, text, created_at_ms
		 FROM turns WHERE guild_id = ? ORDER BY id DESC LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query guild turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	reverseTurns(turns)
	return turns, nil
}

// RecentAllTurns returns the latest limit turns across every pair, oldest
// of the window first. Feeds persona reflection.
func (s *SQLiteStore) RecentAllTurns(ctx context.Context, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, channel_id, guild_id, role, text, created_at_ms
		 FROM turns ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	reverseTurns(turns)
	return turns, nil
}

// TurnCount reports the current size of the turns table.
func (s *SQLiteStore) TurnCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return count, nil
}

// ListPairs enumerates every (user, channel) pair that has recorded turns.
func (s *SQLiteStore) ListPairs(ctx context.Context) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id, channel_id FROM turns ORDER BY user_id, channel_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.UserID, &p.ChannelID); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ListGuilds enumerates every guild that has recorded turns.
func (s *SQLiteStore) ListGuilds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT guild_id FROM turns WHERE guild_id != '' ORDER BY guild_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	defer rows.Close()

	var guilds []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

// UpsertPairSummary replaces the single summary row for a pair.
func (s *SQLiteStore) UpsertPairSummary(ctx context.Context, userID, channelID, summary string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pair_summaries (user_id, channel_id, summary, updated_at_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, channel_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at_ms = excluded.updated_at_ms`,
		userID, channelID, summary, nowMS(),
	)
	if err != nil {
		return fmt.Errorf("upsert pair summary: %w", err)
	}
	return nil
}

// GetPairSummary returns the summary for a pair, or "" when none exists.
func (s *SQLiteStore) GetPairSummary(ctx context.Context, userID, channelID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM pair_summaries WHERE user_id = ? AND channel_id = ?`,
		userID, channelID,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pair summary: %w", err)
	}
	return summary, nil
}

// UpsertGuildSummary replaces the single summary row for a guild.
func (s *SQLiteStore) UpsertGuildSummary(ctx context.Context, guildID, summary string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guild_summaries (guild_id, summary, updated_at_ms)
		 VALUES (?, ?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET
			summary = excluded.summary,
			updated_at_ms = excluded.updated_at_ms`,
		guildID, summary, nowMS(),
	)
	if err != nil {
		return fmt.Errorf("upsert guild summary: %w", err)
	}
	return nil
}

// GetGuildSummary returns the summary for a guild, or "" when none exists.
func (s *SQLiteStore) GetGuildSummary(ctx context.Context, guildID string) (string, error) {
	var summary string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM guild_summaries WHERE guild_id = ?`, guildID,
	).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get guild summary: %w", err)
	}
	return summary, nil
}

// AppendContextHint records a locally computed topic hint for a pair.
func (s *SQLiteStore) AppendContextHint(ctx context.Context, userID, channelID, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_hints (user_id, channel_id, text, created_at_ms)
		 VALUES (?, ?, ?, ?)`,
		userID, channelID, text, nowMS(),
	)
	if err != nil {
		return fmt.Errorf("append context hint: %w", err)
	}
	return nil
}

// RecentContextHints returns the latest limit hints for a pair, newest first.
func (s *SQLiteStore) RecentContextHints(ctx context.Context, userID, channelID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM context_hints WHERE user_id = ? AND channel_id = ?
		 ORDER BY id DESC LIMIT ?`,
		userID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query context hints: %w", err)
	}
	defer rows.Close()

	var hints []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan context hint: %w", err)
		}
		hints = append(hints, h)
	}
	return hints, rows.Err()
}

// UpsertUserProfile refreshes the cached identity for a user.
func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, p UserProfile) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lastSeen := p.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, username, display_name, last_seen_ms)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			last_seen_ms = excluded.last_seen_ms`,
		p.UserID, p.Username, p.DisplayName, lastSeen.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

// GetUserProfile returns the cached profile for a user. A user never seen
// yields a zero profile with only UserID set.
func (s *SQLiteStore) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	var p UserProfile
	var lastSeenMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, display_name, last_seen_ms FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.DisplayName, &lastSeenMS)
	if errors.Is(err, sql.ErrNoRows) {
		return UserProfile{UserID: userID}, nil
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("get user profile: %w", err)
	}
	p.LastSeen = time.UnixMilli(lastSeenMS)
	return p, nil
}

// GetPersona returns the active persona text.
func (s *SQLiteStore) GetPersona(ctx context.Context) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM persona WHERE id = 1`).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get persona: %w", err)
	}
	return text, nil
}

// SetPersona replaces the active persona text.
func (s *SQLiteStore) SetPersona(ctx context.Context, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persona (id, text, updated_at_ms) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			updated_at_ms = excluded.updated_at_ms`,
		text, nowMS(),
	)
	if err != nil {
		return fmt.Errorf("set persona: %w", err)
	}
	return nil
}

// ResetAll wipes every table except the persona row.
func (s *SQLiteStore) ResetAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, table := range []string{"turns", "pair_summaries", "guild_summaries", "context_hints", "user_profiles"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		var createdAtMS int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.ChannelID, &t.GuildID, &t.Role, &t.Text, &createdAtMS); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAtMS)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func reverseTurns(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
