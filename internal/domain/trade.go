package domain

import (
	"strings"
	"time"
)

// Trade represents a single position lifecycle from entry to exit.
// ExitPrice, StopLoss and TakeProfit are nil when not set.
type Trade struct {
	ID         string             // Opaque identifier, assigned by the store at creation
	Symbol     string             // Trading pair (e.g. "BTC/USDT")
	Side       OrderSide          // buy or sell
	EntryPrice float64            // Price at which the position was entered
	ExitPrice  *float64           // Price at which the position was exited, nil while open
	Quantity   float64            // Size of the position, always > 0
	StopLoss   *float64           // Protective stop level, nil if not set
	TakeProfit *float64           // Protective profit level, nil if not set
	Status     TradeStatus        // open, closed or canceled
	Reason     string             // Free text explaining closure
	Indicators map[string]float64 // Indicator snapshot at entry, kept for audit
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// PNL computes the realized profit and loss for the given exit price.
// Buy: (exit - entry) * quantity. Sell: (entry - exit) * quantity.
func (t *Trade) PNL(exitPrice float64) float64 {
	if t.Side == Sell {
		return (t.EntryPrice - exitPrice) * t.Quantity
	}
	return (exitPrice - t.EntryPrice) * t.Quantity
}

// PNLPercent computes P&L as a percentage of the entry notional.
func (t *Trade) PNLPercent(exitPrice float64) float64 {
	notional := t.EntryPrice * t.Quantity
	if notional == 0 {
		return 0
	}
	return t.PNL(exitPrice) / notional * 100
}

// BaseAsset returns the base asset of the symbol ("BTC" for "BTC/USDT").
func (t *Trade) BaseAsset() string {
	if i := strings.IndexByte(t.Symbol, '/'); i >= 0 {
		return t.Symbol[:i]
	}
	return t.Symbol
}
