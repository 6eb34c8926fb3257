// Package notify delivers match notifications to Telegram chats.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notification messages through the Telegram Bot API.
type Telegram struct {
	api telegramAPI
	log *slog.Logger
}

// New creates a Telegram notifier with the given bot token.
func New(token string, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, log: log}, nil
}

// Notify sends a text message to the given chat. Delivery failures are
// logged, not returned; a lost notification never fails a pipeline run.
func (t *Telegram) Notify(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("send notification", "chat_id", chatID, "error", err)
	}
}
