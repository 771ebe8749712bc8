package indicators

import (
	"context"
	"math"
	"testing"

	"cryptoRsiBot/internal/domain"
)

func TestATR_Calculate(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		klines      []*domain.Kline
		expected    float64
		expectError bool
	}{
		{
			name:   "Constant range",
			period: 3,
			klines: []*domain.Kline{
				{High: 10, Low: 8, Close: 9},
				{High: 11, Low: 9, Close: 10},
				{High: 12, Low: 10, Close: 11},
				{High: 13, Low: 11, Close: 12},
			},
			expected: 2.0,
		},
		{
			name:   "Smoothed varying range",
			period: 2,
			klines: []*domain.Kline{
				{High: 10, Low: 8, Close: 9},     // TR 2
				{High: 12, Low: 9, Close: 11},    // TR 3
				{High: 11, Low: 10, Close: 10.5}, // TR 1
			},
			expected: 1.75, // seed (2+3)/2, then (2.5+1)/2
		},
		{
			name:   "Gap down uses previous close",
			period: 2,
			klines: []*domain.Kline{
				{High: 100, Low: 98, Close: 99},
				{High: 95, Low: 93, Close: 94}, // TR = |93-99| = 6
				{High: 94, Low: 92, Close: 93}, // TR = 2
			},
			expected: 3.0, // seed (2+6)/2=4, then (4+2)/2
		},
		{
			name:   "Insufficient data",
			period: 3,
			klines: []*domain.Kline{
				{High: 10, Low: 8, Close: 9},
				{High: 11, Low: 9, Close: 10},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: tt.period}})
			value, err := atr.Calculate(context.Background(), tt.klines)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if math.Abs(value-tt.expected) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expected, value)
			}
		})
	}
}

func TestATR_RequiredDataPoints(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 14}})
	if got := atr.RequiredDataPoints(); got != 15 {
		t.Errorf("RequiredDataPoints() = %d, want 15", got)
	}
}
