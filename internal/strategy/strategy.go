package strategy

import (
	"context"
	"fmt"
	"strings"

	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
	"cryptoRsiBot/internal/strategy/indicators"
)

// Config holds the indicator periods and RSI thresholds for signal generation.
type Config struct {
	RSIPeriod     int     // e.g., 14
	RSIOverbought float64 // e.g., 70.0
	RSIOversold   float64 // e.g., 30.0

	MACDFastPeriod   int // e.g., 12
	MACDSlowPeriod   int // e.g., 26
	MACDSignalPeriod int // e.g., 9

	ATRPeriod int // e.g., 14
}

// Generator derives indicator snapshots from candle series and turns them into
// trading intents. Entry and exit decisions are driven by RSI thresholds;
// MACD and ATR are computed for the audit snapshot and risk sizing.
// The generator is stateless per call: no history is retained between ticks
// beyond what the caller supplies.
type Generator struct {
	cfg    Config
	logger ports.Logger
	rsi    *indicators.RSI
	macd   *indicators.MACD
	atr    *indicators.ATR
}

// New creates a signal generator, validating the configuration.
func New(cfg Config, logger ports.Logger) (*Generator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}

	var errs []string
	if cfg.RSIPeriod <= 0 || cfg.ATRPeriod <= 0 {
		errs = append(errs, "RSI and ATR periods must be positive")
	}
	if cfg.MACDFastPeriod <= 0 || cfg.MACDSlowPeriod <= 0 || cfg.MACDSignalPeriod <= 0 {
		errs = append(errs, "MACD periods must be positive")
	}
	if cfg.MACDFastPeriod >= cfg.MACDSlowPeriod {
		errs = append(errs, "MACD fast period must be less than slow period")
	}
	if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (overbought must be > oversold, between 0-100)")
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("strategy configuration invalid: %s", strings.Join(errs, "; "))
	}

	return &Generator{
		cfg:    cfg,
		logger: logger,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		}),
		macd: indicators.NewMACD(indicators.MACDConfig{
			FastPeriod:   cfg.MACDFastPeriod,
			SlowPeriod:   cfg.MACDSlowPeriod,
			SignalPeriod: cfg.MACDSignalPeriod,
		}),
		atr: indicators.NewATR(indicators.ATRConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.ATRPeriod},
		}),
	}, nil
}

// RequiredDataPoints returns the minimum number of klines needed so that every
// configured indicator can produce a value.
func (g *Generator) RequiredDataPoints() int {
	required := g.rsi.RequiredDataPoints()
	if n := g.macd.RequiredDataPoints(); n > required {
		required = n
	}
	if n := g.atr.RequiredDataPoints(); n > required {
		required = n
	}
	return required
}

// Analyze computes the latest indicator snapshot from the candle series.
// Indicators with insufficient data are left absent in the snapshot.
func (g *Generator) Analyze(ctx context.Context, klines []*domain.Kline) *domain.IndicatorSnapshot {
	snap := &domain.IndicatorSnapshot{}

	if rsi, err := g.rsi.Calculate(ctx, klines); err != nil {
		g.logger.Debug(ctx, "RSI unavailable", map[string]interface{}{"reason": err.Error()})
	} else {
		snap.RSI = &rsi
	}

	if macd, err := g.macd.Calculate(ctx, klines); err != nil {
		g.logger.Debug(ctx, "MACD unavailable", map[string]interface{}{"reason": err.Error()})
	} else {
		snap.MACDLine = &macd.Line
		snap.MACDSignal = &macd.Signal
		snap.MACDHistogram = &macd.Histogram
		snap.MACDCrossUp = macd.CrossUp
		snap.MACDCrossDown = macd.CrossDown
	}

	if atr, err := g.atr.Calculate(ctx, klines); err != nil {
		g.logger.Debug(ctx, "ATR unavailable", map[string]interface{}{"reason": err.Error()})
	} else {
		snap.ATR = &atr
	}

	return snap
}

// Evaluate decides the trading intent for the snapshot.
//
// Entry (no open position): RSI < oversold opens a buy, RSI > overbought opens
// a sell. Exit (position open): a buy closes once RSI reaches the overbought
// threshold, a sell once it reaches the oversold threshold. An absent RSI or
// an ambiguous reading (both thresholds at once) always yields none.
func (g *Generator) Evaluate(ctx context.Context, snapshot *domain.IndicatorSnapshot, open *domain.Trade) (domain.Signal, string) {
	if snapshot == nil || snapshot.RSI == nil {
		return domain.SignalNone, ""
	}
	rsi := *snapshot.RSI

	if open != nil && open.IsOpen() {
		switch {
		case open.Side == domain.Buy && g.rsi.IsOverbought(rsi):
			return domain.SignalClose, fmt.Sprintf("RSI %.2f reached overbought %.2f", rsi, g.cfg.RSIOverbought)
		case open.Side == domain.Sell && g.rsi.IsOversold(rsi):
			return domain.SignalClose, fmt.Sprintf("RSI %.2f reached oversold %.2f", rsi, g.cfg.RSIOversold)
		default:
			return domain.SignalNone, ""
		}
	}

	oversold := rsi < g.cfg.RSIOversold
	overbought := rsi > g.cfg.RSIOverbought
	switch {
	case oversold && overbought:
		// Impossible under sane thresholds, but never act on ambiguous input.
		g.logger.Warn(ctx, "Ambiguous RSI reading, skipping signal", map[string]interface{}{"rsi": rsi})
		return domain.SignalNone, ""
	case oversold:
		return domain.SignalOpenBuy, ""
	case overbought:
		return domain.SignalOpenSell, ""
	default:
		return domain.SignalNone, ""
	}
}
