package summarizer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/psychoticproxy/heidi/pkg/memory"
	"github.com/psychoticproxy/heidi/pkg/providers"
	"github.com/psychoticproxy/heidi/pkg/quota"
)

type fakeCompleter struct {
	fn func(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
	return f.fn(ctx, messages, opts)
}

func newSummarizerStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"), 1000, "p")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSummarizePairStoresResult(t *testing.T) {
	store := newSummarizerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "I got a new guitar"})
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleAgent, Text: "cool"})

	calls := 0
	var prompt string
	completer := &fakeCompleter{fn: func(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
		calls++
		prompt = messages[1].Content
		return "  user plays guitar  ", nil
	}}

	s := New(store, completer, quota.NewGate(5), "model")
	if err := s.SummarizePair(ctx, "u1", "c1"); err != nil {
		t.Fatalf("summarize pair: %v", err)
	}

	if calls != 1 {
		t.Fatalf("model called %d times, want 1", calls)
	}
	if !strings.Contains(prompt, "new guitar") {
		t.Fatalf("prompt should include the conversation, got %q", prompt)
	}

	summary, err := store.GetPairSummary(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if summary != "user plays guitar" {
		t.Fatalf("summary = %q, want trimmed model output", summary)
	}
}

func TestSummarizePairSkipsEmptyHistory(t *testing.T) {
	store := newSummarizerStore(t)
	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		t.Fatal("no model call expected without history")
		return "", nil
	}}

	s := New(store, completer, quota.NewGate(5), "model")
	if err := s.SummarizePair(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("summarize pair: %v", err)
	}
}

func TestSummarizeKeepsOldSummaryWhenQuotaExhausted(t *testing.T) {
	store := newSummarizerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "hello"})
	store.UpsertPairSummary(ctx, "u1", "c1", "previous summary")

	gate := quota.NewGate(1)
	gate.Allow()

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		t.Fatal("no model call expected with quota exhausted")
		return "", nil
	}}
	s := New(store, completer, gate, "model")
	if err := s.SummarizePair(ctx, "u1", "c1"); err != nil {
		t.Fatalf("quota exhaustion must be quiet, got %v", err)
	}

	summary, _ := store.GetPairSummary(ctx, "u1", "c1")
	if summary != "previous summary" {
		t.Fatalf("summary = %q, want the previous one kept", summary)
	}
}

func TestSummarizeKeepsOldSummaryWhenRateLimited(t *testing.T) {
	store := newSummarizerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "hello"})
	store.UpsertPairSummary(ctx, "u1", "c1", "previous summary")

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		return "", providers.ErrRateLimited
	}}
	s := New(store, completer, quota.NewGate(5), "model")
	if err := s.SummarizePair(ctx, "u1", "c1"); err != nil {
		t.Fatalf("rate limiting must be quiet, got %v", err)
	}

	summary, _ := store.GetPairSummary(ctx, "u1", "c1")
	if summary != "previous summary" {
		t.Fatalf("summary = %q, want the previous one kept", summary)
	}
}

func TestSummarizePairPropagatesHardFailure(t *testing.T) {
	store := newSummarizerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "hello"})

	upstream := errors.New("bad gateway")
	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		return "", upstream
	}}
	s := New(store, completer, quota.NewGate(5), "model")
	if err := s.SummarizePair(ctx, "u1", "c1"); !errors.Is(err, upstream) {
		t.Fatalf("err = %v, want the upstream error", err)
	}
}

func TestSummarizeGuildStoresResult(t *testing.T) {
	store := newSummarizerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", GuildID: "g1", Role: memory.RoleUser, Text: "server talk"})

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		return "lively server", nil
	}}
	s := New(store, completer, quota.NewGate(5), "model")
	if err := s.SummarizeGuild(ctx, "g1"); err != nil {
		t.Fatalf("summarize guild: %v", err)
	}

	summary, _ := store.GetGuildSummary(ctx, "g1")
	if summary != "lively server" {
		t.Fatalf("summary = %q", summary)
	}
}
