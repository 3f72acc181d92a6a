package persona

import (
	"context"
	"errors"
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

func TestReflectRewritesPersona(t *testing.T) {
	store := newComposerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "you seem moodier lately"})

	var prompt string
	completer := &fakeCompleter{fn: func(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
		prompt = messages[1].Content
		return "a moodier persona", nil
	}}

	r := NewReflector(store, completer, quota.NewGate(5), "model", 10)
	r.Reflect(ctx)

	got, err := store.GetPersona(ctx)
	if err != nil {
		t.Fatalf("get persona: %v", err)
	}
	if got != "a moodier persona" {
		t.Fatalf("persona = %q, want the reflected text", got)
	}

	if !strings.Contains(prompt, "stored persona") {
		t.Error("reflection prompt should carry the current persona")
	}
	if !strings.Contains(prompt, "moodier lately") {
		t.Error("reflection prompt should carry recent turns")
	}
	for _, line := range constraintLines {
		if !strings.Contains(prompt, line) {
			t.Errorf("reflection prompt missing constraint %s", line)
		}
	}
}

func TestReflectSkipsWithoutHistory(t *testing.T) {
	store := newComposerStore(t)
	ctx := context.Background()

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		t.Fatal("no model call expected with an empty history")
		return "", nil
	}}
	r := NewReflector(store, completer, quota.NewGate(5), "model", 10)
	r.Reflect(ctx)
}

func TestReflectKeepsPersonaOnFailure(t *testing.T) {
	store := newComposerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "hello"})

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		return "", errors.New("upstream down")
	}}
	r := NewReflector(store, completer, quota.NewGate(5), "model", 10)
	r.Reflect(ctx)

	got, _ := store.GetPersona(ctx)
	if got != "stored persona" {
		t.Fatalf("persona = %q, failed reflection must not touch it", got)
	}
}

func TestReflectSkipsWhenQuotaExhausted(t *testing.T) {
	store := newComposerStore(t)
	ctx := context.Background()
	store.AppendTurn(ctx, memory.Turn{UserID: "u1", ChannelID: "c1", Role: memory.RoleUser, Text: "hello"})

	gate := quota.NewGate(1)
	gate.Allow()

	completer := &fakeCompleter{fn: func(context.Context, []providers.Message, providers.ChatOptions) (string, error) {
		t.Fatal("no model call expected with quota exhausted")
		return "", nil
	}}
	r := NewReflector(store, completer, gate, "model", 10)
	r.Reflect(ctx)
}
