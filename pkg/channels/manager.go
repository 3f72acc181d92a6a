package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/psychoticproxy/heidi/pkg/bus"
	"github.com/psychoticproxy/heidi/pkg/logger"
)

// Manager owns the channel adapters and pumps the outbound side of the
// bus into them.
type Manager struct {
	channels     map[string]Channel
	bus          *bus.MessageBus
	dispatchStop context.CancelFunc
	mu           sync.RWMutex
}

func NewManager(messageBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
	}
}

func (m *Manager) Register(channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.Name()] = channel
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, channel := range m.channels {
		channelsCopy[name] = channel
	}
	m.mu.RUnlock()

	if len(channelsCopy) == 0 {
		logger.WarnC("channels", "no channels registered")
		return nil
	}

	var started []string
	var startErrors []string
	for name, channel := range channelsCopy {
		logger.InfoCF("channels", "starting channel", map[string]any{"channel": name})
		if err := channel.Start(ctx); err != nil {
			startErrors = append(startErrors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		started = append(started, name)
	}

	if len(startErrors) > 0 {
		for _, name := range started {
			if err := channelsCopy[name].Stop(ctx); err != nil {
				logger.WarnCF("channels", "stop partially-started channel failed", map[string]any{
					"channel": name,
					"error":   err.Error(),
				})
			}
		}
		return fmt.Errorf("start channels: %s", strings.Join(startErrors, "; "))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.dispatchStop != nil {
		m.dispatchStop()
	}
	m.dispatchStop = cancel
	m.mu.Unlock()
	go m.dispatchOutbound(dispatchCtx)

	logger.InfoCF("channels", "all channels started", map[string]any{"count": len(started)})
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchStop != nil {
		m.dispatchStop()
		m.dispatchStop = nil
	}

	for name, channel := range m.channels {
		if err := channel.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "stop channel failed", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	logger.InfoC("channels", "all channels stopped")
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	logger.InfoC("channels", "outbound dispatcher started")
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			logger.InfoC("channels", "outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !exists {
			logger.WarnCF("channels", "unknown channel for outbound message", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		if err := channel.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "send failed", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}
	}
}

// Send delivers directly through a named channel, bypassing the bus, and
// reports the send result. Queue delivery uses this so a job is marked
// delivered only on a confirmed send.
func (m *Manager) Send(ctx context.Context, channelName, chatID, content string) error {
	m.mu.RLock()
	channel, exists := m.channels[channelName]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("channel %s not found", channelName)
	}
	return channel.Send(ctx, bus.OutboundMessage{
		Channel: channelName,
		ChatID:  chatID,
		Content: content,
	})
}

func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]bool, len(m.channels))
	for name, channel := range m.channels {
		status[name] = channel.IsRunning()
	}
	return status
}
