package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cryptoRsiBot/internal/ports"
)

// Notifier sends trade notifications to a Telegram chat. Delivery is best
// effort: failures are logged and swallowed, trading never depends on them.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token  string // Empty token disables the notifier
	ChatID int64
	Logger ports.Logger
}

// NewNotifier creates a Telegram notifier. An empty token yields a disabled
// notifier whose Send always reports false; this is not an error.
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Telegram notifier")
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		cfg.Logger.Warn(context.Background(), "Telegram token or chat ID not set, notifications disabled")
		return &Notifier{logger: cfg.Logger}, nil
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		// Bad token at startup degrades to a disabled notifier rather than
		// blocking the bot.
		cfg.Logger.Error(context.Background(), err, "Telegram API initialization failed, notifications disabled")
		return &Notifier{logger: cfg.Logger}, nil
	}
	api.Debug = false

	cfg.Logger.Info(context.Background(), "Telegram notifier connected", map[string]interface{}{
		"botUser": api.Self.UserName,
		"chatID":  cfg.ChatID,
	})
	return &Notifier{api: api, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Enabled reports whether the notifier has a working Telegram connection.
func (n *Notifier) Enabled() bool {
	return n.api != nil
}

// API exposes the underlying bot API for the command listener. Returns nil
// when the notifier is disabled.
func (n *Notifier) API() *tgbotapi.BotAPI {
	return n.api
}

// Send delivers a message to the configured chat. It reports whether delivery
// succeeded and never returns an error.
func (n *Notifier) Send(ctx context.Context, message string) bool {
	if n.api == nil {
		return false
	}

	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn(ctx, "Telegram notification failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

var _ ports.Notifier = (*Notifier)(nil)
