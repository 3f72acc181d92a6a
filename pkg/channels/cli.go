package channels

import (
	"context"
	"fmt"
	"io"

	"github.com/psychoticproxy/heidi/pkg/bus"
)

// CLIChannel backs the local REPL: inbound lines come from the prompt
// loop, outbound replies print to the terminal.
type CLIChannel struct {
	*BaseChannel
	out io.Writer
}

func NewCLIChannel(msgBus *bus.MessageBus, out io.Writer) *CLIChannel {
	return &CLIChannel{
		BaseChannel: NewBaseChannel("cli", msgBus),
		out:         out,
	}
}

func (c *CLIChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	return nil
}

func (c *CLIChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("cli channel not running")
	}
	_, err := fmt.Fprintf(c.out, "heidi> %s\n", msg.Content)
	return err
}

// Submit injects one typed line as an inbound message.
func (c *CLIChannel) Submit(userID, content string) {
	c.publish(bus.InboundMessage{
		SenderID:    userID,
		ChatID:      "local",
		Content:     content,
		Username:    userID,
		DisplayName: userID,
	})
}
