package domain

// OrderSide represents the side of an order (buy or sell).
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the side that closes a position opened on this side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsValid reports whether the side is one of the known values.
func (s OrderSide) IsValid() bool {
	return s == Buy || s == Sell
}

// TradeStatus represents the lifecycle status of a trade.
type TradeStatus string

const (
	StatusOpen     TradeStatus = "open"
	StatusClosed   TradeStatus = "closed"
	StatusCanceled TradeStatus = "canceled"
)

// Close reasons written by the engine itself. Trade.Reason is free text,
// manual closes may carry any string.
const (
	ReasonRestartRecovery = "auto-closed on restart"
	ReasonStopLossHit     = "stop loss hit"
	ReasonTakeProfitHit   = "take profit hit"
	ReasonManualClose     = "manual close"
)
