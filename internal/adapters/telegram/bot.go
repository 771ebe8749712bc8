package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cryptoRsiBot/internal/app"
	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
)

const helpText = `Available commands:
/status - Bot state and symbol
/start_trading - Start the trading loop
/stop_trading - Stop the trading loop
/open - List open trades
/recent [n] - List recent trades (default 10)
/close <id> <price> [reason] - Manually close a trade
/test - Check exchange connectivity
/help - Show this message`

// Bot listens for operator commands on the configured Telegram chat and
// forwards them to the trading service.
type Bot struct {
	notifier *Notifier
	service  *app.TradingService
	exchange ports.ExchangeClient
	chatID   int64
	logger   ports.Logger
}

// NewBot creates the command listener on top of an existing notifier
// connection.
func NewBot(notifier *Notifier, service *app.TradingService, exchange ports.ExchangeClient, chatID int64, logger ports.Logger) *Bot {
	return &Bot{
		notifier: notifier,
		service:  service,
		exchange: exchange,
		chatID:   chatID,
		logger:   logger,
	}
}

// Run polls Telegram for commands until the context is canceled. It returns
// immediately when the notifier is disabled.
func (b *Bot) Run(ctx context.Context) error {
	api := b.notifier.API()
	if api == nil {
		b.logger.Warn(ctx, "Telegram bot disabled, command listener not started")
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	b.logger.Info(ctx, "Telegram command listener started", map[string]interface{}{
		"botUser": api.Self.UserName,
	})

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case up := <-updates:
			if up.Message == nil {
				continue
			}
			// Only the configured operator chat is trusted.
			if up.Message.Chat.ID != b.chatID {
				b.logger.Warn(ctx, "Ignoring command from unknown chat", map[string]interface{}{
					"chatID": up.Message.Chat.ID,
				})
				continue
			}
			b.handleCommand(ctx, strings.TrimSpace(up.Message.Text))
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, text string) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "/start", "/help":
		b.notifier.Send(ctx, helpText)
	case "/status":
		b.notifier.Send(ctx, b.statusText(ctx))
	case "/start_trading":
		if err := b.service.Start(ctx); err != nil {
			b.notifier.Send(ctx, fmt.Sprintf("❌ Failed to start trading: %v", err))
			return
		}
		b.notifier.Send(ctx, "▶️ Trading started")
	case "/stop_trading":
		b.service.Stop(ctx)
		b.notifier.Send(ctx, "⏸ Trading stopped")
	case "/open":
		b.replyTradeList(ctx, "Open trades", func() ([]*domain.Trade, error) {
			return b.service.OpenTrades(ctx)
		})
	case "/recent":
		limit := 10
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil {
				limit = n
			}
		}
		b.replyTradeList(ctx, "Recent trades", func() ([]*domain.Trade, error) {
			return b.service.RecentTrades(ctx, limit)
		})
	case "/close":
		b.handleClose(ctx, parts[1:])
	case "/test":
		if err := b.exchange.Ping(ctx); err != nil {
			b.notifier.Send(ctx, fmt.Sprintf("❌ Exchange unreachable: %v", err))
			return
		}
		b.notifier.Send(ctx, "✅ Exchange connection OK")
	default:
		b.notifier.Send(ctx, "Unknown command. Try /help")
	}
}

func (b *Bot) handleClose(ctx context.Context, args []string) {
	if len(args) < 2 {
		b.notifier.Send(ctx, "Usage: /close <id> <price> [reason]")
		return
	}
	id := args[0]
	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil || price <= 0 {
		b.notifier.Send(ctx, fmt.Sprintf("Invalid price %q", args[1]))
		return
	}
	reason := ""
	if len(args) > 2 {
		reason = strings.Join(args[2:], " ")
	}

	trade, err := b.service.CloseTrade(ctx, id, price, reason)
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrTradeNotFound):
			b.notifier.Send(ctx, fmt.Sprintf("Trade %s not found", id))
		case errors.Is(err, ports.ErrTradeAlreadyClosed):
			b.notifier.Send(ctx, fmt.Sprintf("Trade %s is already closed", id))
		default:
			b.notifier.Send(ctx, fmt.Sprintf("❌ Failed to close trade %s: %v", id, err))
		}
		return
	}
	b.notifier.Send(ctx, fmt.Sprintf("Closed trade %s, PnL %.8f", trade.ID, trade.PNL(price)))
}

func (b *Bot) statusText(ctx context.Context) string {
	state := "stopped"
	if b.service.IsRunning() {
		state = "running"
	}
	openCount := 0
	if trades, err := b.service.OpenTrades(ctx); err == nil {
		openCount = len(trades)
	}
	return fmt.Sprintf("Bot: %s\nOpen trades: %d", state, openCount)
}

func (b *Bot) replyTradeList(ctx context.Context, title string, fetch func() ([]*domain.Trade, error)) {
	trades, err := fetch()
	if err != nil {
		b.notifier.Send(ctx, fmt.Sprintf("❌ Failed to list trades: %v", err))
		return
	}
	if len(trades) == 0 {
		b.notifier.Send(ctx, title+": none")
		return
	}

	var sb strings.Builder
	sb.WriteString(title + ":\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("• %s %s %s qty %.8f entry %.2f [%s]\n",
			t.ID, strings.ToUpper(string(t.Side)), t.Symbol, t.Quantity, t.EntryPrice, t.Status))
	}
	b.notifier.Send(ctx, sb.String())
}
