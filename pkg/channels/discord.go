package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/psychoticproxy/heidi/pkg/bus"
	"github.com/psychoticproxy/heidi/pkg/config"
	"github.com/psychoticproxy/heidi/pkg/logger"
)

const (
	sendTimeout = 10 * time.Second
	// Discord rejects messages over 2000 characters.
	discordMessageLimit = 2000
)

// DiscordChannel listens for mentions and DMs and publishes them inbound.
// Everything else in a guild is ignored: the bot replies only when spoken
// to.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
}

func NewDiscordChannel(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", msgBus),
		session:     session,
		config:      cfg,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "starting Discord connection")

	c.session.AddHandler(c.handleMessage)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	logger.InfoCF("discord", "connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "closing Discord connection")
	c.setRunning(false)
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

// Send delivers an outbound message, chunked at the platform limit.
// Returns nil only when every chunk was accepted.
func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord channel not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("channel ID is empty")
	}

	content := msg.Content
	if msg.Mention != "" {
		content = fmt.Sprintf("<@%s> %s", msg.Mention, content)
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	for _, chunk := range splitMessage(content, discordMessageLimit) {
		if err := c.sendChunk(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

// Typing shows the typing indicator in a channel. Best-effort.
func (c *DiscordChannel) Typing(channelID string) {
	if channelID == "" || c.session == nil {
		return
	}
	if err := c.session.ChannelTyping(channelID); err != nil {
		logger.DebugCF("discord", "typing indicator failed", map[string]any{"error": err.Error()})
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if m.Author.ID == s.State.User.ID {
		return
	}

	isDM := m.GuildID == ""
	if !isDM && !mentionsUser(m.Mentions, s.State.User.ID) {
		return
	}

	content := stripMention(m.Content, s.State.User.ID)

	displayName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		displayName = m.Member.Nick
	} else if m.Author.GlobalName != "" {
		displayName = m.Author.GlobalName
	}

	logger.DebugCF("discord", "mention received", map[string]any{
		"sender_id":  m.Author.ID,
		"channel_id": m.ChannelID,
	})

	c.Typing(m.ChannelID)
	c.publish(bus.InboundMessage{
		SenderID:    m.Author.ID,
		ChatID:      m.ChannelID,
		GuildID:     m.GuildID,
		Content:     content,
		DisplayName: displayName,
		Username:    m.Author.Username,
		Metadata: map[string]string{
			"message_id": m.ID,
			"is_dm":      fmt.Sprintf("%t", isDM),
		},
	})
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// stripMention removes the bot's own mention tokens from a message so the
// prompt is just what the user said.
func stripMention(content, userID string) string {
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}

// splitMessage breaks long content at natural boundaries under the limit.
func splitMessage(content string, limit int) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= limit {
			chunks = append(chunks, content)
			break
		}

		cut := strings.LastIndexByte(content[:limit], '\n')
		if cut < limit/2 {
			if sp := strings.LastIndexByte(content[:limit], ' '); sp > cut {
				cut = sp
			}
		}
		if cut <= 0 {
			cut = limit
		}

		chunks = append(chunks, strings.TrimSpace(content[:cut]))
		content = strings.TrimSpace(content[cut:])
	}
	return chunks
}
