package position

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
	"cryptoRsiBot/internal/risk"
)

// Manager owns the single open position for one symbol and enforces the
// at-most-one-open-trade invariant. All transitions (open, close, startup
// recovery) run through it. One Manager instance must be created per symbol;
// the current position reference is only mutated under the internal mutex.
type Manager struct {
	symbol     string
	quoteAsset string
	logger     ports.Logger
	exchange   ports.ExchangeClient
	trades     ports.TradeRepository
	notifier   ports.Notifier
	sizer      *risk.Sizer

	mu      sync.Mutex
	current *domain.Trade
}

// Config holds the dependencies for a position manager.
type Config struct {
	Symbol   string
	Logger   ports.Logger
	Exchange ports.ExchangeClient
	Trades   ports.TradeRepository
	Notifier ports.Notifier
	Sizer    *risk.Sizer
}

// NewManager creates a position manager for a single symbol.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required for position manager")
	}
	if cfg.Logger == nil || cfg.Exchange == nil || cfg.Trades == nil || cfg.Notifier == nil || cfg.Sizer == nil {
		return nil, fmt.Errorf("missing required dependencies for position manager")
	}
	return &Manager{
		symbol:     cfg.Symbol,
		quoteAsset: quoteAsset(cfg.Symbol),
		logger:     cfg.Logger,
		exchange:   cfg.Exchange,
		trades:     cfg.Trades,
		notifier:   cfg.Notifier,
		sizer:      cfg.Sizer,
	}, nil
}

// Current returns the currently open trade, or nil.
func (m *Manager) Current() *domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// HasOpen reports whether a position is currently open for the symbol.
func (m *Manager) HasOpen() bool {
	return m.Current() != nil
}

// Recover closes every trade left open by a previous run at its own entry
// price, before the trading loop starts. No exchange orders are placed: the
// engine does not reconcile local state with exchange-side positions across
// restarts, it only closes what it locally thinks is open.
func (m *Manager) Recover(ctx context.Context) error {
	op := "Recover"
	openTrades, err := m.trades.FindAllOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to query open trades for recovery: %w", err)
	}
	if len(openTrades) == 0 {
		m.logger.Info(ctx, op+": No open trades found")
		return nil
	}

	for _, trade := range openTrades {
		m.logger.Warn(ctx, op+": Closing trade left open by a previous run", map[string]interface{}{
			"tradeID":    trade.ID,
			"symbol":     trade.Symbol,
			"entryPrice": trade.EntryPrice,
		})
		if err := m.finalizeClose(ctx, trade, trade.EntryPrice, domain.ReasonRestartRecovery); err != nil {
			return fmt.Errorf("failed to close trade %s during recovery: %w", trade.ID, err)
		}
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// Open transitions NONE -> OPEN: sizes the order under the risk budget, places
// a market order, computes protective levels and persists the new trade.
// A failed order placement aborts the transition with nothing persisted.
func (m *Manager) Open(ctx context.Context, side domain.OrderSide, price float64, snapshot *domain.IndicatorSnapshot) (*domain.Trade, error) {
	op := "Open"
	if !side.IsValid() {
		return nil, fmt.Errorf("%w: invalid order side %q", ports.ErrInvalidRequest, side)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, fmt.Errorf("%w: trade %s", ports.ErrPositionOpen, m.current.ID)
	}

	balance, err := m.exchange.GetAvailableBalance(ctx, m.quoteAsset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch available balance: %w", err)
	}

	quantity, err := m.sizer.PositionSize(balance, price)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, op+": Placing entry market order", map[string]interface{}{
		"symbol":   m.symbol,
		"side":     side,
		"quantity": quantity,
		"price":    price,
	})
	order, err := m.exchange.PlaceMarketOrder(ctx, m.symbol, side, formatQuantity(quantity))
	if err != nil {
		return nil, fmt.Errorf("entry market order failed: %w", err)
	}

	// Use the actual filled price if available, otherwise fall back to the
	// candle price the signal was generated from.
	entryPrice := order.AvgPrice
	if entryPrice == 0 {
		m.logger.Warn(ctx, op+": Entry order AvgPrice is 0, using candle close price as fallback", map[string]interface{}{
			"orderID":       order.OrderID,
			"fallbackPrice": price,
		})
		entryPrice = price
	}

	var atr *float64
	if snapshot != nil {
		atr = snapshot.ATR
	}
	levels := m.sizer.ProtectiveLevels(side, entryPrice, atr)

	trade := &domain.Trade{
		Symbol:     m.symbol,
		Side:       side,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		StopLoss:   &levels.StopLoss,
		TakeProfit: &levels.TakeProfit,
		Status:     domain.StatusOpen,
		Indicators: snapshot.Values(),
	}

	if err := m.trades.Create(ctx, trade); err != nil {
		// Orders are already on the exchange but we have no record. Flatten
		// the exposure so local and exchange state stay consistent.
		m.logger.Error(ctx, err, op+": Failed to persist new trade, attempting emergency close")
		if closeErr := m.emergencyClose(ctx, side, quantity); closeErr != nil {
			m.logger.Error(ctx, closeErr, op+": EMERGENCY CLOSE FAILED, manual intervention required")
		}
		return nil, fmt.Errorf("failed to persist trade after placing order: %w (emergency close attempted)", err)
	}

	m.current = trade
	m.logger.Info(ctx, op+": Position opened", map[string]interface{}{
		"tradeID":    trade.ID,
		"side":       trade.Side,
		"entryPrice": trade.EntryPrice,
		"quantity":   trade.Quantity,
		"stopLoss":   levels.StopLoss,
		"takeProfit": levels.TakeProfit,
	})

	m.notifyOpen(ctx, trade)
	return trade, nil
}

// Close transitions OPEN -> CLOSED for the current position: places an
// offsetting market order and updates the trade record with exit price,
// reason and realized P&L. A failed order placement leaves the position open.
func (m *Manager) Close(ctx context.Context, exitPrice float64, reason string) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCurrentLocked(ctx, exitPrice, reason)
}

// closeCurrentLocked closes the current position. The caller holds m.mu.
func (m *Manager) closeCurrentLocked(ctx context.Context, exitPrice float64, reason string) (*domain.Trade, error) {
	op := "Close"
	if m.current == nil {
		return nil, ports.ErrNoOpenPosition
	}
	trade := m.current

	m.logger.Info(ctx, op+": Placing offsetting market order", map[string]interface{}{
		"tradeID":   trade.ID,
		"side":      trade.Side.Opposite(),
		"quantity":  trade.Quantity,
		"exitPrice": exitPrice,
		"reason":    reason,
	})
	order, err := m.exchange.PlaceMarketOrder(ctx, m.symbol, trade.Side.Opposite(), formatQuantity(trade.Quantity))
	if err != nil {
		return nil, fmt.Errorf("closing market order failed for trade %s: %w", trade.ID, err)
	}

	actualExit := order.AvgPrice
	if actualExit == 0 {
		m.logger.Warn(ctx, op+": Close order AvgPrice is 0, using candle close price as fallback", map[string]interface{}{
			"orderID":       order.OrderID,
			"fallbackPrice": exitPrice,
		})
		actualExit = exitPrice
	}

	// The exchange position is flat once the offsetting order fills: clear
	// the in-memory position before persisting so a failed update cannot
	// trigger a second offsetting order. The record then stays open in the
	// store and startup recovery closes it.
	m.current = nil
	if err := m.finalizeClose(ctx, trade, actualExit, reason); err != nil {
		return nil, err
	}
	return trade, nil
}

// CloseByID closes a trade by its identifier (the manual override path).
// Closing the currently managed position places an offsetting market order;
// a stale open record is closed in the store only.
func (m *Manager) CloseByID(ctx context.Context, id string, exitPrice float64, reason string) (*domain.Trade, error) {
	m.mu.Lock()
	if m.current != nil && m.current.ID == id {
		defer m.mu.Unlock()
		return m.closeCurrentLocked(ctx, exitPrice, reason)
	}
	m.mu.Unlock()

	trade, err := m.trades.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up trade %s: %w", id, err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%w: %s", ports.ErrTradeNotFound, id)
	}
	if !trade.IsOpen() {
		return nil, fmt.Errorf("%w: %s", ports.ErrTradeAlreadyClosed, id)
	}

	if err := m.finalizeClose(ctx, trade, exitPrice, reason); err != nil {
		return nil, err
	}
	return trade, nil
}

// CheckProtectiveLevels reports whether the price has breached the stop loss
// or take profit of the current position, and the close reason if so.
func (m *Manager) CheckProtectiveLevels(price float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false, ""
	}
	sl, tp := m.current.StopLoss, m.current.TakeProfit

	if m.current.Side == domain.Buy {
		if sl != nil && price <= *sl {
			return true, domain.ReasonStopLossHit
		}
		if tp != nil && price >= *tp {
			return true, domain.ReasonTakeProfitHit
		}
		return false, ""
	}
	if sl != nil && price >= *sl {
		return true, domain.ReasonStopLossHit
	}
	if tp != nil && price <= *tp {
		return true, domain.ReasonTakeProfitHit
	}
	return false, ""
}

// finalizeClose updates the trade record to closed and sends the close
// notification. It does not touch the exchange.
func (m *Manager) finalizeClose(ctx context.Context, trade *domain.Trade, exitPrice float64, reason string) error {
	trade.ExitPrice = &exitPrice
	trade.Status = domain.StatusClosed
	trade.Reason = reason
	trade.UpdatedAt = time.Now().UTC()

	if err := m.trades.Update(ctx, trade); err != nil {
		return fmt.Errorf("failed to update closed trade %s: %w", trade.ID, err)
	}

	pnl := trade.PNL(exitPrice)
	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"tradeID":    trade.ID,
		"exitPrice":  exitPrice,
		"pnl":        pnl,
		"pnlPercent": trade.PNLPercent(exitPrice),
		"reason":     reason,
	})

	m.notifyClose(ctx, trade, exitPrice)
	return nil
}

// emergencyClose flattens exposure on the exchange after a persistence
// failure. It does not touch the store, as no trade record exists yet.
func (m *Manager) emergencyClose(ctx context.Context, entrySide domain.OrderSide, quantity float64) error {
	m.logger.Warn(ctx, "Placing emergency closing order", map[string]interface{}{
		"side":     entrySide.Opposite(),
		"quantity": quantity,
	})
	_, err := m.exchange.PlaceMarketOrder(ctx, m.symbol, entrySide.Opposite(), formatQuantity(quantity))
	if err != nil {
		return fmt.Errorf("emergency close order placement failed: %w", err)
	}
	return nil
}

func (m *Manager) notifyOpen(ctx context.Context, trade *domain.Trade) {
	msg := fmt.Sprintf("🟢 OPENED %s\n%s | %s %s\nEntry: %s\nStop loss: %s\nTake profit: %s",
		strings.ToUpper(string(trade.Side)),
		trade.Symbol,
		formatQuantity(trade.Quantity),
		trade.BaseAsset(),
		formatPrice(trade.EntryPrice),
		formatOptionalPrice(trade.StopLoss),
		formatOptionalPrice(trade.TakeProfit),
	)
	if !m.notifier.Send(ctx, msg) {
		m.logger.Warn(ctx, "Open notification not delivered", map[string]interface{}{"tradeID": trade.ID})
	}
}

func (m *Manager) notifyClose(ctx context.Context, trade *domain.Trade, exitPrice float64) {
	msg := fmt.Sprintf("🔴 CLOSED %s\n%s | %s %s\nEntry: %s | Exit: %s\nPnL: %.8f (%.2f%%)\nReason: %s",
		strings.ToUpper(string(trade.Side)),
		trade.Symbol,
		formatQuantity(trade.Quantity),
		trade.BaseAsset(),
		formatPrice(trade.EntryPrice),
		formatPrice(exitPrice),
		trade.PNL(exitPrice),
		trade.PNLPercent(exitPrice),
		trade.Reason,
	)
	if !m.notifier.Send(ctx, msg) {
		m.logger.Warn(ctx, "Close notification not delivered", map[string]interface{}{"tradeID": trade.ID})
	}
}

// quoteAsset extracts the quote asset from a pair ("USDT" for "BTC/USDT").
func quoteAsset(symbol string) string {
	if i := strings.IndexByte(symbol, '/'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}

// formatQuantity formats a quantity for the exchange API, matching the 8
// decimal place sizing precision.
func formatQuantity(quantity float64) string {
	return strconv.FormatFloat(quantity, 'f', 8, 64)
}

// formatPrice formats a price for human-readable notifications.
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func formatOptionalPrice(price *float64) string {
	if price == nil {
		return "not set"
	}
	return formatPrice(*price)
}
