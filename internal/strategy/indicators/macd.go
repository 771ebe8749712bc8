package indicators

import (
	"context"
	"fmt"

	"cryptoRsiBot/internal/domain"
)

// MACDConfig holds configuration for the MACD indicator
type MACDConfig struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// MACDResult holds the latest MACD line, signal line and histogram values,
// plus the histogram zero-line crossing flags derived from the previous bar.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
	CrossUp   bool
	CrossDown bool
}

// MACD implements the Moving Average Convergence Divergence indicator as the
// difference of a fast and a slow EMA of closing prices, with an EMA signal line.
type MACD struct {
	config MACDConfig
}

// NewMACD creates a new MACD indicator instance
func NewMACD(config MACDConfig) *MACD {
	return &MACD{config: config}
}

// Name returns the name of the indicator
func (m *MACD) Name() string {
	return "MACD"
}

// RequiredDataPoints returns the minimum number of klines needed for the
// signal line plus one previous histogram value for cross detection.
func (m *MACD) RequiredDataPoints() int {
	return m.config.SlowPeriod + m.config.SignalPeriod
}

// Calculate computes the latest MACD values for the given klines.
func (m *MACD) Calculate(ctx context.Context, klines []*domain.Kline) (*MACDResult, error) {
	fast, slow, signal := m.config.FastPeriod, m.config.SlowPeriod, m.config.SignalPeriod
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, fmt.Errorf("MACD periods must be positive (fast=%d, slow=%d, signal=%d)", fast, slow, signal)
	}
	if fast >= slow {
		return nil, fmt.Errorf("MACD fast period (%d) must be less than slow period (%d)", fast, slow)
	}

	values := closes(klines)
	minPoints := slow + signal - 1
	if len(values) < minPoints {
		return nil, fmt.Errorf("not enough data points for MACD calculation: need %d, got %d", minPoints, len(values))
	}

	fastSeries, err := EMASeries(values, fast)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate fast EMA: %w", err)
	}
	slowSeries, err := EMASeries(values, slow)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate slow EMA: %w", err)
	}

	// The fast series starts earlier than the slow one; align both to the
	// slow series and take their difference as the MACD line.
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := EMASeries(line, signal)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate signal line: %w", err)
	}

	res := &MACDResult{
		Line:   line[len(line)-1],
		Signal: signalSeries[len(signalSeries)-1],
	}
	res.Histogram = res.Line - res.Signal

	// Cross flags need the previous histogram value.
	if len(signalSeries) >= 2 {
		prevHistogram := line[len(line)-2] - signalSeries[len(signalSeries)-2]
		res.CrossUp = res.Histogram > 0 && prevHistogram <= 0
		res.CrossDown = res.Histogram < 0 && prevHistogram >= 0
	}

	return res, nil
}
