package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
)

type OpsNotifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier posts to the operations chat.
type TelegramNotifier struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telego.NewBot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, text string) error {
	_, err := n.bot.SendMessage(&telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("bot.SendMessage: %w", err)
	}
	return nil
}
