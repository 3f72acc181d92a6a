package channels

import (
	"context"

	"github.com/psychoticproxy/heidi/pkg/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

type BaseChannel struct {
	bus     *bus.MessageBus
	name    string
	running bool
}

func NewBaseChannel(name string, bus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{
		bus:  bus,
		name: name,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running
}

func (c *BaseChannel) setRunning(running bool) {
	c.running = running
}

func (c *BaseChannel) publish(msg bus.InboundMessage) {
	msg.Channel = c.name
	c.bus.PublishInbound(msg)
}
