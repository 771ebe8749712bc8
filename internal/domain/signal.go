package domain

// Signal is the trading intent derived from the latest indicator snapshot.
type Signal int

const (
	SignalNone Signal = iota
	SignalOpenBuy
	SignalOpenSell
	SignalClose
)

// String returns a human readable name for the signal.
func (s Signal) String() string {
	switch s {
	case SignalOpenBuy:
		return "open-buy"
	case SignalOpenSell:
		return "open-sell"
	case SignalClose:
		return "close"
	default:
		return "none"
	}
}

// IndicatorSnapshot holds the latest indicator values computed from one candle
// series. A nil field means the series was too short for that indicator and
// callers must treat it as "no signal"; values are never fabricated.
type IndicatorSnapshot struct {
	RSI           *float64
	MACDLine      *float64
	MACDSignal    *float64
	MACDHistogram *float64
	MACDCrossUp   bool
	MACDCrossDown bool
	ATR           *float64
}

// Values flattens the snapshot into the audit map persisted on a Trade.
// Absent indicators are omitted entirely.
func (s *IndicatorSnapshot) Values() map[string]float64 {
	if s == nil {
		return nil
	}
	m := make(map[string]float64, 5)
	if s.RSI != nil {
		m["rsi"] = *s.RSI
	}
	if s.MACDLine != nil {
		m["macd"] = *s.MACDLine
	}
	if s.MACDSignal != nil {
		m["macd_signal"] = *s.MACDSignal
	}
	if s.MACDHistogram != nil {
		m["macd_histogram"] = *s.MACDHistogram
	}
	if s.ATR != nil {
		m["atr"] = *s.ATR
	}
	return m
}
