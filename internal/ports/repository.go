package ports

import (
	"context"

	"cryptoRsiBot/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving trades.
type TradeRepository interface {
	// Create persists a new trade, assigning its ID and timestamps on the
	// passed object.
	Create(ctx context.Context, trade *domain.Trade) error
	// FindByID retrieves a trade by its unique ID.
	// Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*domain.Trade, error)
	// FindAllOpen retrieves all trades with status open, newest first.
	FindAllOpen(ctx context.Context) ([]*domain.Trade, error)
	// FindRecent retrieves the most recently updated trades, up to a limit.
	FindRecent(ctx context.Context, limit int) ([]*domain.Trade, error)
	// Update modifies an existing trade, refreshing its UpdatedAt timestamp.
	Update(ctx context.Context, trade *domain.Trade) error
}
