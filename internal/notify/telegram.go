package notify

import (
	"context"
	"strconv"

	"github.com/alanyoungcy/oddsbot/internal/telegram"
)

// TelegramSender posts alerts to one operator chat through the bot client.
type TelegramSender struct {
	client *telegram.Client
	chatID int64
}

// NewTelegramSender parses chatID and creates a TelegramSender.
func NewTelegramSender(client *telegram.Client, chatID string) (*TelegramSender, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{client: client, chatID: id}, nil
}

// Send posts the alert as plain text with the title on its own line.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	_, err := t.client.SendMessage(ctx, t.chatID, title+"\n\n"+message, nil)
	return err
}

func (t *TelegramSender) Name() string { return "telegram" }
