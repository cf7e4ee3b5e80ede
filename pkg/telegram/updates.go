package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/dispatcher"
)

// DefaultPollTimeout is the long-poll timeout in seconds.
const DefaultPollTimeout = 60

// ParseUpdate extracts a recognized command from update. Commands suffixed
// with another bot's username ("/qr@other_bot") are not ours. An empty
// botName accepts any suffix.
func ParseUpdate(update tgbotapi.Update, botName string) (dispatcher.InboundCommand, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return dispatcher.InboundCommand{}, false
	}

	if _, target, found := strings.Cut(msg.CommandWithAt(), "@"); found && botName != "" {
		if !strings.EqualFold(target, botName) {
			return dispatcher.InboundCommand{}, false
		}
	}

	cmd := dispatcher.ParseCommand(msg.Command())
	if cmd == dispatcher.CommandUnknown {
		return dispatcher.InboundCommand{}, false
	}

	return dispatcher.InboundCommand{ChatID: msg.Chat.ID, Command: cmd}, true
}

// Poll long-polls for updates and passes recognized commands to handle until
// ctx is canceled.
func (c *Client) Poll(ctx context.Context, timeout int, handle Handler) error {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout

	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	c.logger.Info("polling for updates", zap.String("bot", c.userName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(update, handle)
		}
	}
}

func (c *Client) handleUpdate(update tgbotapi.Update, handle Handler) {
	cmd, ok := ParseUpdate(update, c.userName)
	if !ok {
		c.logger.Debug("skipping update", zap.Int("update_id", update.UpdateID))
		return
	}
	handle(cmd)
}
