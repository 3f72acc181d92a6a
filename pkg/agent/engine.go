package agent

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/psychoticproxy/heidi/pkg/bus"
	"github.com/psychoticproxy/heidi/pkg/logger"
	"github.com/psychoticproxy/heidi/pkg/memory"
	"github.com/psychoticproxy/heidi/pkg/persona"
	"github.com/psychoticproxy/heidi/pkg/providers"
	"github.com/psychoticproxy/heidi/pkg/queue"
	"github.com/psychoticproxy/heidi/pkg/quota"
	"github.com/psychoticproxy/heidi/pkg/summarizer"
)

// fallbackReplies are sent when a reply had to be deferred, so a mention
// never goes completely unanswered.
var fallbackReplies = []string{
	"https://tenor.com/view/bocchi-bocchi-the-rock-non-linear-gif-27023528",
	"https://tenor.com/view/bocchi-the-rock-bocchi-roll-rolling-rolling-on-the-floor-gif-4645200487976536632",
	"https://tenor.com/view/anime-fran-sleep-sleepy-tired-gif-8633431630979404250",
}

// Options carries the reply-engine knobs out of config.
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	Cooldown       time.Duration
	TypingDelayMin time.Duration
	TypingDelayMax time.Duration
	CreatorID      string
	Admins         []string
}

// Engine consumes inbound messages, runs the quota-gated reply pipeline
// and publishes replies. Failed generations become queue jobs instead of
// user-visible errors.
type Engine struct {
	bus       *bus.MessageBus
	completer providers.Completer
	gate      *quota.Gate
	store     memory.Store
	convo     *memory.ConversationMemory
	composer  *persona.Composer
	queue     *queue.Manager
	summarize *summarizer.Summarizer
	opts      Options

	mu           sync.Mutex
	lastReply    map[string]time.Time
	pendingReset map[string]time.Time
	now          func() time.Time
}

func NewEngine(
	msgBus *bus.MessageBus,
	completer providers.Completer,
	gate *quota.Gate,
	store memory.Store,
	convo *memory.ConversationMemory,
	composer *persona.Composer,
	queueMgr *queue.Manager,
	summarize *summarizer.Summarizer,
	opts Options,
) *Engine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 15 * time.Second
	}
	return &Engine{
		bus:          msgBus,
		completer:    completer,
		gate:         gate,
		store:        store,
		convo:        convo,
		composer:     composer,
		queue:        queueMgr,
		summarize:    summarize,
		opts:         opts,
		lastReply:    make(map[string]time.Time),
		pendingReset: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Run consumes the inbound bus until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	logger.InfoC("agent", "reply engine started")
	for {
		msg, ok := e.bus.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("agent", "reply engine stopped")
			return
		}
		e.handle(ctx, msg)
	}
}

func (e *Engine) handle(ctx context.Context, msg bus.InboundMessage) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		content = "What?"
	}

	e.rememberProfile(ctx, msg)

	if handled := e.handleCommand(ctx, msg, content); handled {
		return
	}

	if !e.allowUser(msg.SenderID) {
		logger.DebugCF("agent", "cooldown active, ignoring message", map[string]any{
			"user_id": msg.SenderID,
		})
		return
	}

	reply := e.GenerateReply(ctx, msg.SenderID, msg.ChatID, msg.GuildID, content)
	if reply == "" {
		// Deferred: the queue owes this user a reply. Acknowledge with a
		// fallback so the mention is not silently dropped.
		e.send(msg.Channel, msg.ChatID, fallbackReplies[rand.Intn(len(fallbackReplies))], "")
		return
	}

	e.typingPause(ctx)
	e.send(msg.Channel, msg.ChatID, reply, "")
}

// GenerateReply runs the full pipeline: quota gate, prompt composition,
// model call, turn recording. Any failure enqueues the prompt for deferred
// delivery and returns the empty string; callers never see an error.
func (e *Engine) GenerateReply(ctx context.Context, userID, channelID, guildID, prompt string) string {
	reply, err := e.generate(ctx, userID, channelID, guildID, prompt)
	if err != nil {
		logger.WarnCF("agent", "reply deferred", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		if _, _, qErr := e.queue.Enqueue(ctx, userID, channelID, prompt); qErr != nil {
			logger.ErrorCF("agent", "enqueue failed", map[string]any{"error": qErr.Error()})
		}
		return ""
	}

	e.recordExchange(ctx, userID, channelID, guildID, prompt, reply)
	return reply
}

// generate is the fallible core shared with queue delivery: quota check
// then one model call. No recording, no enqueueing.
func (e *Engine) generate(ctx context.Context, userID, channelID, guildID, prompt string) (string, error) {
	if !e.gate.Allow() {
		return "", quota.ErrExhausted
	}

	messages := e.composer.Compose(ctx, userID, channelID, guildID, prompt)
	return e.completer.Complete(ctx, messages, providers.ChatOptions{
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
}

// DeliverJob satisfies queue.DeliverFunc: regenerate the deferred reply
// and push it out. Returns an error on any failure so the queue worker
// retries; the job is marked delivered only after this returns nil.
func (e *Engine) DeliverJob(send func(channelID, content string) error) queue.DeliverFunc {
	return func(ctx context.Context, job queue.Job) error {
		reply, err := e.generate(ctx, job.UserID, job.ChannelID, "", job.Prompt)
		if err != nil {
			return err
		}
		if err := send(job.ChannelID, reply); err != nil {
			return err
		}
		e.recordExchange(ctx, job.UserID, job.ChannelID, "", job.Prompt, reply)
		return nil
	}
}

func (e *Engine) recordExchange(ctx context.Context, userID, channelID, guildID, prompt, reply string) {
	now := e.now()
	userTurn := memory.Turn{
		UserID: userID, ChannelID: channelID, GuildID: guildID,
		Role: memory.RoleUser, Text: prompt, CreatedAt: now,
	}
	agentTurn := memory.Turn{
		UserID: userID, ChannelID: channelID, GuildID: guildID,
		Role: memory.RoleAgent, Text: reply, CreatedAt: now,
	}
	if err := e.convo.Record(ctx, userTurn); err != nil {
		logger.ErrorCF("agent", "record user turn failed", map[string]any{"error": err.Error()})
	}
	if err := e.convo.Record(ctx, agentTurn); err != nil {
		logger.ErrorCF("agent", "record agent turn failed", map[string]any{"error": err.Error()})
	}
}

func (e *Engine) rememberProfile(ctx context.Context, msg bus.InboundMessage) {
	if msg.Username == "" && msg.DisplayName == "" {
		return
	}
	err := e.store.UpsertUserProfile(ctx, memory.UserProfile{
		UserID:      msg.SenderID,
		Username:    msg.Username,
		DisplayName: msg.DisplayName,
		LastSeen:    e.now(),
	})
	if err != nil {
		logger.WarnCF("agent", "profile upsert failed", map[string]any{"error": err.Error()})
	}
}

// allowUser enforces the per-user cooldown: one reply per window.
func (e *Engine) allowUser(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if last, ok := e.lastReply[userID]; ok && now.Sub(last) < e.opts.Cooldown {
		return false
	}
	e.lastReply[userID] = now
	return true
}

func (e *Engine) typingPause(ctx context.Context) {
	if e.opts.TypingDelayMax <= 0 {
		return
	}
	delay := e.opts.TypingDelayMin
	if span := e.opts.TypingDelayMax - e.opts.TypingDelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (e *Engine) send(channel, chatID, content, mention string) {
	e.bus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
		Mention: mention,
	})
}
