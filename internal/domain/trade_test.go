package domain

import (
	"math"
	"testing"
)

func TestTrade_PNL(t *testing.T) {
	tests := []struct {
		name        string
		side        OrderSide
		entry       float64
		quantity    float64
		exit        float64
		wantPNL     float64
		wantPercent float64
	}{
		{
			name:        "buy with profit",
			side:        Buy,
			entry:       50000,
			quantity:    0.1,
			exit:        52000,
			wantPNL:     200,
			wantPercent: 4.0,
		},
		{
			name:        "buy with loss",
			side:        Buy,
			entry:       50000,
			quantity:    0.1,
			exit:        49000,
			wantPNL:     -100,
			wantPercent: -2.0,
		},
		{
			name:        "sell with profit",
			side:        Sell,
			entry:       50000,
			quantity:    0.1,
			exit:        49000,
			wantPNL:     100,
			wantPercent: 2.0,
		},
		{
			name:        "sell with loss",
			side:        Sell,
			entry:       50000,
			quantity:    0.1,
			exit:        52000,
			wantPNL:     -200,
			wantPercent: -4.0,
		},
		{
			name:     "break even",
			side:     Buy,
			entry:    50000,
			quantity: 0.1,
			exit:     50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &Trade{Side: tt.side, EntryPrice: tt.entry, Quantity: tt.quantity}
			if got := trade.PNL(tt.exit); math.Abs(got-tt.wantPNL) > 1e-9 {
				t.Errorf("PNL(%f) = %f, want %f", tt.exit, got, tt.wantPNL)
			}
			if got := trade.PNLPercent(tt.exit); math.Abs(got-tt.wantPercent) > 1e-9 {
				t.Errorf("PNLPercent(%f) = %f, want %f", tt.exit, got, tt.wantPercent)
			}
		})
	}
}

func TestTrade_BaseAsset(t *testing.T) {
	trade := &Trade{Symbol: "BTC/USDT"}
	if got := trade.BaseAsset(); got != "BTC" {
		t.Errorf("BaseAsset() = %q, want %q", got, "BTC")
	}
}

func TestOrderSide_Opposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Error("expected opposite of buy to be sell")
	}
	if Sell.Opposite() != Buy {
		t.Error("expected opposite of sell to be buy")
	}
}
