package ports

import (
	"context"
	"time"

	"cryptoRsiBot/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID     int64     // Exchange's order ID
	Symbol      string    // Symbol for the order
	AvgPrice    float64   // Average filled price (0 if not reported)
	ExecutedQty float64   // Quantity filled
	Status      string    // Order status (e.g., NEW, FILLED)
	Side        string    // Order side (BUY, SELL)
	Timestamp   time.Time // Time the order response was generated
}

// ExchangeClient defines the interface for interacting with a cryptocurrency exchange.
// This abstraction allows decoupling the core bot logic from specific exchange implementations.
// Any call may fail with a transient connectivity error; callers retry on the next tick.
type ExchangeClient interface {
	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// GetKlines retrieves the most recent candlesticks for the given symbol,
	// ordered oldest first.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)

	// GetAvailableBalance retrieves the free balance for a specific asset (e.g., "USDT").
	GetAvailableBalance(ctx context.Context, asset string) (float64, error)

	// PlaceMarketOrder places a market order.
	// Returns the essential order details upon successful execution.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*OrderResponse, error)
}
