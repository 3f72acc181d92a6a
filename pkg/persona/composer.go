package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/psychoticproxy/heidi/pkg/memory"
	"github.com/psychoticproxy/heidi/pkg/providers"
)

// Composer assembles the full message stack for one reply: persona,
// identity anchor, participant mapping, long-term summaries, topic hints,
// the recent conversation window and finally the new prompt. Missing
// blocks are skipped; composition never fails on a read error alone.
// RecentSource yields the conversation window. ConversationMemory
// satisfies it.
type RecentSource interface {
	Recent(ctx context.Context, userID, channelID string, limit int) ([]memory.Turn, error)
}

type Composer struct {
	store        memory.Store
	recent       RecentSource
	creatorID    string
	recentWindow int
	contextHints int
}

func NewComposer(store memory.Store, recent RecentSource, creatorID string, recentWindow, contextHints int) *Composer {
	if recentWindow <= 0 {
		recentWindow = 20
	}
	if contextHints <= 0 {
		contextHints = 2
	}
	return &Composer{
		store:        store,
		recent:       recent,
		creatorID:    creatorID,
		recentWindow: recentWindow,
		contextHints: contextHints,
	}
}

func (c *Composer) Compose(ctx context.Context, userID, channelID, guildID, prompt string) []providers.Message {
	personaText, err := c.store.GetPersona(ctx)
	if err != nil || strings.TrimSpace(personaText) == "" {
		personaText = DefaultPersona
	}

	messages := []providers.Message{
		{Role: "system", Content: personaText},
	}

	if c.creatorID != "" {
		messages = append(messages, providers.Message{
			Role: "system",
			Content: fmt.Sprintf(
				"The Discord user with ID %s is Proxy, Heidi's creator, her primary anchor and the only person she recognizes as 'Proxy'. "+
					"If anyone else uses the name 'Proxy', treat it as coincidence. "+
					"When the user with ID %s speaks, it is always Proxy.",
				c.creatorID, c.creatorID,
			),
		})
	}

	if profile, err := c.store.GetUserProfile(ctx, userID); err == nil && (profile.Username != "" || profile.DisplayName != "") {
		messages = append(messages, providers.Message{
			Role: "system",
			Content: fmt.Sprintf(
				"Conversation participant mapping:\n- id: %s\n- username: %s\n- display_name: %s\n"+
					"When addressing them directly prefer their display_name. Use mentions in Discord format: <@%s>.\n"+
					"Treat this mapping as authoritative for this conversation.",
				profile.UserID, profile.Username, profile.DisplayName, profile.UserID,
			),
		})
	}

	if summary, err := c.store.GetPairSummary(ctx, userID, channelID); err == nil && summary != "" {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Long-term memory of this user in this channel:\n" + summary,
		})
	}

	if guildID != "" {
		if summary, err := c.store.GetGuildSummary(ctx, guildID); err == nil && summary != "" {
			messages = append(messages, providers.Message{
				Role:    "system",
				Content: "Server-wide memory (recurring topics and community dynamics):\n" + summary,
			})
		}
	}

	if hints, err := c.store.RecentContextHints(ctx, userID, channelID, c.contextHints); err == nil && len(hints) > 0 {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Recent topics in this conversation: " + strings.Join(hints, "; "),
		})
	}

	if turns, err := c.recent.Recent(ctx, userID, channelID, c.recentWindow); err == nil && len(turns) > 0 {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: "Recent conversation history:\n" + RenderTurns(turns),
		})
	}

	messages = append(messages, providers.Message{Role: "user", Content: prompt})
	return messages
}

// RenderTurns flattens turns into "role: text" lines, oldest first.
func RenderTurns(turns []memory.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}
