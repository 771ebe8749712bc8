package indicators

import "fmt"

// SMA computes the simple moving average of the last 'period' values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(values), period)
	}

	total := 0.0
	for i := len(values) - period; i < len(values); i++ {
		total += values[i]
	}
	return total / float64(period), nil
}

// EMASeries computes the exponential moving average over the whole series.
// The first EMA value is seeded with the SMA of the first 'period' values, so
// the returned series has len(values)-period+1 entries, aligned with
// values[period-1:].
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(values) < period {
		return nil, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(values), period)
	}

	multiplier := 2.0 / float64(period+1)

	seed, err := SMA(values[:period], period)
	if err != nil {
		return nil, fmt.Errorf("failed to seed EMA with SMA: %w", err)
	}

	series := make([]float64, 0, len(values)-period+1)
	ema := seed
	series = append(series, ema)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		series = append(series, ema)
	}
	return series, nil
}
