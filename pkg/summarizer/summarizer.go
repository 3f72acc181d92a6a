// Package summarizer condenses conversation history into long-term
// summaries. All work is best-effort: quota exhaustion and transient model
// failures skip the item and leave the previous summary in place.
package summarizer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/psychoticproxy/heidi/pkg/logger"
	"github.com/psychoticproxy/heidi/pkg/memory"
	"github.com/psychoticproxy/heidi/pkg/persona"
	"github.com/psychoticproxy/heidi/pkg/providers"
	"github.com/psychoticproxy/heidi/pkg/quota"
)

const (
	pairHistoryWindow  = 50
	guildHistoryWindow = 200
	// pacing between model calls during a sweep, so a large server does
	// not burst the provider.
	sweepPacing = time.Second
)

type Summarizer struct {
	store     memory.Store
	completer providers.Completer
	gate      *quota.Gate
	model     string
}

func New(store memory.Store, completer providers.Completer, gate *quota.Gate, model string) *Summarizer {
	return &Summarizer{
		store:     store,
		completer: completer,
		gate:      gate,
		model:     model,
	}
}

// SummarizePair condenses the last turns of one (user, channel) pair into
// a single replaced summary row. One model call per invocation.
func (s *Summarizer) SummarizePair(ctx context.Context, userID, channelID string) error {
	turns, err := s.store.RecentTurns(ctx, userID, channelID, pairHistoryWindow)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	prompt := "Summarize the following Discord conversation between a user and Heidi. " +
		"Keep the key facts, tone, and relationship dynamics in a single concise uncensored paragraph.\n\n" +
		persona.RenderTurns(turns)
	summary, err := s.complete(ctx, prompt)
	if err != nil || summary == "" {
		return err
	}
	return s.store.UpsertPairSummary(ctx, userID, channelID, summary)
}

// SummarizeGuild condenses the last turns across a guild into its single
// summary row.
func (s *Summarizer) SummarizeGuild(ctx context.Context, guildID string) error {
	turns, err := s.store.RecentGuildTurns(ctx, guildID, guildHistoryWindow)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	prompt := "Summarize the following recent server-level interactions directed at Heidi. " +
		"Keep key recurring topics, tone, and community dynamics in a concise uncensored paragraph.\n\n" +
		persona.RenderTurns(turns)
	summary, err := s.complete(ctx, prompt)
	if err != nil || summary == "" {
		return err
	}
	return s.store.UpsertGuildSummary(ctx, guildID, summary)
}

// SweepAll summarizes every known pair, then every known guild, pacing the
// calls. Individual failures are logged and skipped.
func (s *Summarizer) SweepAll(ctx context.Context) {
	pairs, err := s.store.ListPairs(ctx)
	if err != nil {
		logger.WarnCF("summarizer", "list pairs failed", map[string]any{"error": err.Error()})
		return
	}
	for _, p := range pairs {
		if ctx.Err() != nil {
			return
		}
		if err := s.SummarizePair(ctx, p.UserID, p.ChannelID); err != nil {
			logger.WarnCF("summarizer", "pair summary skipped", map[string]any{
				"user_id":    p.UserID,
				"channel_id": p.ChannelID,
				"error":      err.Error(),
			})
		}
		pause(ctx, sweepPacing)
	}

	guilds, err := s.store.ListGuilds(ctx)
	if err != nil {
		logger.WarnCF("summarizer", "list guilds failed", map[string]any{"error": err.Error()})
		return
	}
	for _, g := range guilds {
		if ctx.Err() != nil {
			return
		}
		if err := s.SummarizeGuild(ctx, g); err != nil {
			logger.WarnCF("summarizer", "guild summary skipped", map[string]any{
				"guild_id": g,
				"error":    err.Error(),
			})
		}
		pause(ctx, sweepPacing)
	}
	logger.InfoCF("summarizer", "sweep complete", map[string]any{
		"pairs":  len(pairs),
		"guilds": len(guilds),
	})
}

// complete runs the single quota-gated model call for one summary. Rate
// limiting is quiet: nil summary, nil error.
func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	if !s.gate.Allow() {
		logger.WarnC("summarizer", "daily quota exhausted, skipping summary")
		return "", nil
	}

	messages := []providers.Message{
		{Role: "system", Content: "You are a helpful uncensored assistant."},
		{Role: "user", Content: prompt},
	}
	summary, err := s.completer.Complete(ctx, messages, providers.ChatOptions{Model: s.model})
	if err != nil {
		if errors.Is(err, providers.ErrRateLimited) {
			logger.WarnC("summarizer", "rate limited, skipping summary")
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
