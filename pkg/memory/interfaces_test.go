package memory

import (
	"context"
	"testing"
)

func TestNullStoreBacksRingOnlyConversations(t *testing.T) {
	store := NewNullStore("default persona")
	convo := NewConversationMemory(store, 5)
	ctx := context.Background()

	if err := convo.Record(ctx, Turn{UserID: "u1", ChannelID: "c1", Role: RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	turns, err := convo.Recent(ctx, "u1", "c1", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "hi" {
		t.Fatalf("ring should still serve turns, got %+v", turns)
	}

	// Nothing is durable: the raw store has no history.
	stored, err := store.RecentTurns(ctx, "u1", "c1", 5)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("null store returned %d turns", len(stored))
	}
}

func TestNullStoreKeepsPersonaInProcess(t *testing.T) {
	store := NewNullStore("seed")
	ctx := context.Background()

	got, err := store.GetPersona(ctx)
	if err != nil || got != "seed" {
		t.Fatalf("persona = %q, %v", got, err)
	}
	if err := store.SetPersona(ctx, "updated"); err != nil {
		t.Fatalf("set persona: %v", err)
	}
	got, _ = store.GetPersona(ctx)
	if got != "updated" {
		t.Fatalf("persona = %q, want updated", got)
	}
}
