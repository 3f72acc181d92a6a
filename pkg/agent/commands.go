package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/psychoticproxy/heidi/pkg/bus"
	"github.com/psychoticproxy/heidi/pkg/logger"
)

const (
	resetConfirmPhrase = "CONFIRM RESET"
	resetConfirmWindow = 30 * time.Second
)

// handleCommand intercepts admin commands. Reports true when the message
// was consumed as a command (including rejected ones from non-admins).
func (e *Engine) handleCommand(ctx context.Context, msg bus.InboundMessage, content string) bool {
	if content == resetConfirmPhrase {
		return e.confirmReset(ctx, msg)
	}
	if !strings.HasPrefix(content, "!") {
		return false
	}

	if !e.isAdmin(msg.SenderID) {
		logger.WarnCF("agent", "command from non-admin ignored", map[string]any{
			"user_id": msg.SenderID,
		})
		return true
	}

	cmd, arg, _ := strings.Cut(strings.TrimPrefix(content, "!"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "persona":
		e.cmdPersona(ctx, msg, arg)
	case "queue":
		e.cmdQueue(ctx, msg)
	case "clearqueue":
		e.cmdClearQueue(ctx, msg)
	case "summarize":
		e.cmdSummarize(ctx, msg)
	case "usage":
		e.cmdUsage(msg)
	case "reset":
		e.cmdReset(msg)
	default:
		return false
	}
	return true
}

func (e *Engine) isAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	if userID == e.opts.CreatorID {
		return true
	}
	for _, admin := range e.opts.Admins {
		if userID == admin {
			return true
		}
	}
	return false
}

func (e *Engine) cmdPersona(ctx context.Context, msg bus.InboundMessage, arg string) {
	if text, ok := strings.CutPrefix(arg, "set "); ok {
		text = strings.TrimSpace(text)
		if text == "" {
			e.send(msg.Channel, msg.ChatID, "Usage: !persona set <text>", "")
			return
		}
		if err := e.store.SetPersona(ctx, text); err != nil {
			logger.ErrorCF("agent", "persona set failed", map[string]any{"error": err.Error()})
			e.send(msg.Channel, msg.ChatID, "Persona update failed.", "")
			return
		}
		e.send(msg.Channel, msg.ChatID, "Persona updated.", "")
		return
	}

	text, err := e.store.GetPersona(ctx)
	if err != nil || text == "" {
		e.send(msg.Channel, msg.ChatID, "No persona set.", "")
		return
	}
	e.send(msg.Channel, msg.ChatID, text, "")
}

func (e *Engine) cmdQueue(ctx context.Context, msg bus.InboundMessage) {
	inMemory, durable, err := e.queue.PendingCounts(ctx)
	if err != nil {
		e.send(msg.Channel, msg.ChatID, "Queue status unavailable.", "")
		return
	}
	e.send(msg.Channel, msg.ChatID,
		fmt.Sprintf("Queue: %d in memory, %d pending on disk.", inMemory, durable), "")
}

func (e *Engine) cmdClearQueue(ctx context.Context, msg bus.InboundMessage) {
	n, err := e.queue.Clear(ctx)
	if err != nil {
		logger.ErrorCF("agent", "queue clear failed", map[string]any{"error": err.Error()})
		e.send(msg.Channel, msg.ChatID, "Queue clear failed.", "")
		return
	}
	e.send(msg.Channel, msg.ChatID, fmt.Sprintf("Cleared %d pending jobs.", n), "")
}

func (e *Engine) cmdSummarize(ctx context.Context, msg bus.InboundMessage) {
	e.send(msg.Channel, msg.ChatID, "Summarization pass started.", "")
	go e.summarize.SweepAll(ctx)
}

func (e *Engine) cmdUsage(msg bus.InboundMessage) {
	used, limit, resetAt := e.gate.Usage()
	e.send(msg.Channel, msg.ChatID,
		fmt.Sprintf("API usage today: %d/%d, resets %s.", used, limit, resetAt.Format(time.RFC3339)), "")
}

// cmdReset arms a destructive full reset; the admin must type the
// confirmation phrase within the window for it to fire.
func (e *Engine) cmdReset(msg bus.InboundMessage) {
	e.mu.Lock()
	e.pendingReset[msg.SenderID] = e.now().Add(resetConfirmWindow)
	e.mu.Unlock()

	e.send(msg.Channel, msg.ChatID,
		fmt.Sprintf("This wipes all memory. Type %q within %d seconds to confirm.",
			resetConfirmPhrase, int(resetConfirmWindow.Seconds())), "")
}

func (e *Engine) confirmReset(ctx context.Context, msg bus.InboundMessage) bool {
	e.mu.Lock()
	deadline, armed := e.pendingReset[msg.SenderID]
	delete(e.pendingReset, msg.SenderID)
	e.mu.Unlock()

	if !armed {
		return false
	}
	if e.now().After(deadline) {
		e.send(msg.Channel, msg.ChatID, "Reset confirmation expired.", "")
		return true
	}

	if err := e.store.ResetAll(ctx); err != nil {
		logger.ErrorCF("agent", "memory reset failed", map[string]any{"error": err.Error()})
		e.send(msg.Channel, msg.ChatID, "Reset failed.", "")
		return true
	}
	e.convo.Forget()
	logger.InfoCF("agent", "memory reset by admin", map[string]any{"user_id": msg.SenderID})
	e.send(msg.Channel, msg.ChatID, "All memory wiped.", "")
	return true
}
