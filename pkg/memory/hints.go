package memory

import (
	"context"
	"strings"

	"github.com/psychoticproxy/heidi/pkg/logger"
)

// RefreshContextHints recomputes topic hints for every active pair from
// its recent turns. Purely local work, no model calls, so it can run on a
// tight schedule without touching the quota.
func RefreshContextHints(ctx context.Context, store Store, recentWindow, maxTopics int) {
	pairs, err := store.ListPairs(ctx)
	if err != nil {
		logger.WarnCF("memory", "context hint refresh failed", map[string]any{"error": err.Error()})
		return
	}

	refreshed := 0
	for _, p := range pairs {
		if ctx.Err() != nil {
			return
		}
		turns, err := store.RecentTurns(ctx, p.UserID, p.ChannelID, recentWindow)
		if err != nil {
			continue
		}
		topics := ExtractTopics(turns, maxTopics)
		if len(topics) == 0 {
			continue
		}
		if err := store.AppendContextHint(ctx, p.UserID, p.ChannelID, strings.Join(topics, ", ")); err != nil {
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		logger.DebugCF("memory", "context hints refreshed", map[string]any{"pairs": refreshed})
	}
}
