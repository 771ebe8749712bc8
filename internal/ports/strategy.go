package ports

import (
	"context"

	"cryptoRsiBot/internal/domain"
)

// SignalGenerator turns a candle series into an indicator snapshot and a
// trading intent.
type SignalGenerator interface {
	// RequiredDataPoints returns the minimum number of klines needed for the
	// indicator calculations.
	RequiredDataPoints() int

	// Analyze computes the latest indicator snapshot from the candle series.
	// Indicators whose period exceeds the series length are absent in the
	// snapshot, never fabricated.
	Analyze(ctx context.Context, klines []*domain.Kline) *domain.IndicatorSnapshot

	// Evaluate decides the trading intent for the snapshot. While a position
	// is open the only possible outcomes are close or none. The returned
	// string is the close reason when the signal is SignalClose.
	Evaluate(ctx context.Context, snapshot *domain.IndicatorSnapshot, open *domain.Trade) (domain.Signal, string)
}
