package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, turnCap int) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"), turnCap, "test persona")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecentTurnsChronologicalSuffix(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAgent
		}
		err := store.AppendTurn(ctx, Turn{
			UserID: "u1", ChannelID: "c1", Role: role,
			Text: fmt.Sprintf("turn %d", i),
		})
		if err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	turns, err := store.RecentTurns(ctx, "u1", "c1", 4)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	// The window is the latest 4 turns, oldest of the window first.
	for i, turn := range turns {
		want := fmt.Sprintf("turn %d", 6+i)
		if turn.Text != want {
			t.Errorf("turns[%d].Text = %q, want %q", i, turn.Text, want)
		}
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].ID <= turns[i-1].ID {
			t.Fatalf("turn ids not increasing: %d then %d", turns[i-1].ID, turns[i].ID)
		}
	}
}

func TestRecentTurnsIsolatesPairs(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	store.AppendTurn(ctx, Turn{UserID: "u1", ChannelID: "c1", Role: RoleUser, Text: "mine"})
	store.AppendTurn(ctx, Turn{UserID: "u2", ChannelID: "c1", Role: RoleUser, Text: "other user"})
	store.AppendTurn(ctx, Turn{UserID: "u1", ChannelID: "c2", Role: RoleUser, Text: "other channel"})

	turns, err := store.RecentTurns(ctx, "u1", "c1", 10)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "mine" {
		t.Fatalf("got %+v, want only the u1/c1 turn", turns)
	}
}

func TestAppendTurnPrunesOldest(t *testing.T) {
	store := newTestStore(t, 5)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		err := store.AppendTurn(ctx, Turn{
			UserID: "u1", ChannelID: "c1", Role: RoleUser,
			Text: fmt.Sprintf("turn %d", i),
		})
		if err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}

		count, err := store.TurnCount(ctx)
		if err != nil {
			t.Fatalf("turn count: %v", err)
		}
		if count > 5 {
			t.Fatalf("after %d appends table holds %d rows, cap is 5", i+1, count)
		}
	}

	turns, err := store.RecentTurns(ctx, "u1", "c1", 100)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("got %d turns, want 5", len(turns))
	}
	if turns[0].Text != "turn 7" || turns[4].Text != "turn 11" {
		t.Fatalf("surviving window is %q..%q, want turn 7..turn 11", turns[0].Text, turns[4].Text)
	}
}

func TestPairSummaryUpsertOverwrites(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	got, err := store.GetPairSummary(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if got != "" {
		t.Fatalf("summary before any upsert = %q, want empty", got)
	}

	if err := store.UpsertPairSummary(ctx, "u1", "c1", "first"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertPairSummary(ctx, "u1", "c1", "second"); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err = store.GetPairSummary(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if got != "second" {
		t.Fatalf("summary = %q, want %q", got, "second")
	}
}

func TestGuildSummaryRoundTrip(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.UpsertGuildSummary(ctx, "g1", "guild notes"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.GetGuildSummary(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "guild notes" {
		t.Fatalf("summary = %q, want %q", got, "guild notes")
	}
}

func TestListPairsAndGuilds(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	store.AppendTurn(ctx, Turn{UserID: "u1", ChannelID: "c1", GuildID: "g1", Role: RoleUser, Text: "a"})
	store.AppendTurn(ctx, Turn{UserID: "u1", ChannelID: "c1", GuildID: "g1", Role: RoleAgent, Text: "b"})
	store.AppendTurn(ctx, Turn{UserID: "u2", ChannelID: "c2", Role: RoleUser, Text: "c"})

	pairs, err := store.ListPairs(ctx)
	if err != nil {
		t.Fatalf("list pairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}

	guilds, err := store.ListGuilds(ctx)
	if err != nil {
		t.Fatalf("list guilds: %v", err)
	}
	// DM turns carry no guild id and must not surface here.
	if len(guilds) != 1 || guilds[0] != "g1" {
		t.Fatalf("guilds = %v, want [g1]", guilds)
	}
}

func TestPersonaSeededAndReplaceable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, 100, "seeded persona")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	got, err := store.GetPersona(ctx)
	if err != nil {
		t.Fatalf("get persona: %v", err)
	}
	if got != "seeded persona" {
		t.Fatalf("persona = %q, want seed", got)
	}

	if err := store.SetPersona(ctx, "evolved persona"); err != nil {
		t.Fatalf("set persona: %v", err)
	}
	store.Close()

	// Reopening must not clobber the evolved text with the seed.
	store, err = NewSQLiteStore(path, 100, "seeded persona")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	got, err = store.GetPersona(ctx)
	if err != nil {
		t.Fatalf("get persona after reopen: %v", err)
	}
	if got != "evolved persona" {
		t.Fatalf("persona after reopen = %q, want %q", got, "evolved persona")
	}
}

func TestUserProfileRoundTrip(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	p, err := store.GetUserProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get unseen profile: %v", err)
	}
	if p.UserID != "u1" || p.Username != "" {
		t.Fatalf("unseen profile = %+v, want zero with UserID set", p)
	}

	err = store.UpsertUserProfile(ctx, UserProfile{UserID: "u1", Username: "proxy", DisplayName: "Proxy"})
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	p, err = store.GetUserProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Username != "proxy" || p.DisplayName != "Proxy" {
		t.Fatalf("profile = %+v", p)
	}
	if p.LastSeen.IsZero() {
		t.Fatal("LastSeen should be populated")
	}
}

func TestContextHintsNewestFirst(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	store.AppendContextHint(ctx, "u1", "c1", "older hint")
	store.AppendContextHint(ctx, "u1", "c1", "newer hint")

	hints, err := store.RecentContextHints(ctx, "u1", "c1", 1)
	if err != nil {
		t.Fatalf("recent hints: %v", err)
	}
	if len(hints) != 1 || hints[0] != "newer hint" {
		t.Fatalf("hints = %v, want [newer hint]", hints)
	}
}

func TestResetAllPreservesPersona(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	store.AppendTurn(ctx, Turn{UserID: "u1", ChannelID: "c1", Role: RoleUser, Text: "hi"})
	store.UpsertPairSummary(ctx, "u1", "c1", "summary")
	store.UpsertUserProfile(ctx, UserProfile{UserID: "u1", Username: "proxy"})
	store.SetPersona(ctx, "kept persona")

	if err := store.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	count, err := store.TurnCount(ctx)
	if err != nil {
		t.Fatalf("turn count: %v", err)
	}
	if count != 0 {
		t.Fatalf("turns after reset = %d, want 0", count)
	}
	summary, _ := store.GetPairSummary(ctx, "u1", "c1")
	if summary != "" {
		t.Fatalf("summary survived reset: %q", summary)
	}
	persona, err := store.GetPersona(ctx)
	if err != nil {
		t.Fatalf("get persona: %v", err)
	}
	if persona != "kept persona" {
		t.Fatalf("persona after reset = %q, want kept", persona)
	}
}
