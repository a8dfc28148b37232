package service

import (
	"context"
	"fmt"

	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier pushes service and trade events to the operator chat.
// With no token configured it degrades to log-only.
type Notifier struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewNotifier(cfg *config.Config) (*Notifier, error) {
	if cfg.Telegram.Token == "" {
		logger.Info("[TG] no token configured, notifications go to log only")
		return &Notifier{}, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: b, chatID: cfg.Telegram.ChatID}, nil
}

func (n *Notifier) Send(_ context.Context, msg string) {
	if n == nil || n.bot == nil {
		logger.Info("[TG] %s", msg)
		return
	}
	if _, err := n.bot.Send(tgbot.NewMessage(n.chatID, msg)); err != nil {
		logger.Error("[TG] send: %v", err)
	}
}

// SendService formats and sends an operational event.
func (n *Notifier) SendService(ctx context.Context, format string, args ...any) {
	n.Send(ctx, fmt.Sprintf(format, args...))
}
