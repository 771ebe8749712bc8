package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cryptoRsiBot/internal/domain"
	"cryptoRsiBot/internal/ports"
)

// quantityScale is the number of decimal places order quantities are rounded to.
const quantityScale = 8

// fallbackRiskPercent is the fixed risk band used for protective levels when
// no ATR value is available or ATR-based stops are disabled.
const fallbackRiskPercent = 0.02

// Config holds risk management configuration for a single symbol.
type Config struct {
	RiskPerTrade     float64 // Percent of the balance risked per trade (e.g., 1.0)
	ATRMultiplier    float64 // Stop distance in ATR units (e.g., 2.0)
	TakeProfitRatio  float64 // Take profit distance as a multiple of the stop distance (e.g., 2.0)
	UseATRStopLoss   bool    // Prefer ATR-based protective levels when ATR is available
	BasePositionSize float64 // Fixed order size used when RiskPerTrade is not set
}

// Levels holds the protective exit levels for a position.
type Levels struct {
	StopLoss   float64
	TakeProfit float64
}

// Sizer turns an account balance and price into an order quantity and
// protective levels under the configured risk budget.
type Sizer struct {
	cfg Config
}

// NewSizer creates a risk sizer, validating the configuration.
func NewSizer(cfg Config) (*Sizer, error) {
	if cfg.RiskPerTrade < 0 || cfg.RiskPerTrade > 100 {
		return nil, fmt.Errorf("%w: RiskPerTrade must be between 0 and 100, got %f", ports.ErrConfigurationError, cfg.RiskPerTrade)
	}
	if cfg.RiskPerTrade == 0 && cfg.BasePositionSize <= 0 {
		return nil, fmt.Errorf("%w: either RiskPerTrade or BasePositionSize must be set", ports.ErrConfigurationError)
	}
	if cfg.ATRMultiplier <= 0 {
		return nil, fmt.Errorf("%w: ATRMultiplier must be positive, got %f", ports.ErrConfigurationError, cfg.ATRMultiplier)
	}
	if cfg.TakeProfitRatio <= 0 {
		return nil, fmt.Errorf("%w: TakeProfitRatio must be positive, got %f", ports.ErrConfigurationError, cfg.TakeProfitRatio)
	}
	return &Sizer{cfg: cfg}, nil
}

// PositionSize computes the order quantity for the given balance and price,
// rounded to exactly 8 decimal places. A quantity that rounds to zero or below
// is treated as insufficient balance and no order should be placed.
func (s *Sizer) PositionSize(balance, price float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("%w: price must be positive, got %f", ports.ErrInvalidRequest, price)
	}

	var qty decimal.Decimal
	if s.cfg.RiskPerTrade > 0 {
		riskAmount := decimal.NewFromFloat(balance).
			Mul(decimal.NewFromFloat(s.cfg.RiskPerTrade)).
			Div(decimal.NewFromInt(100))
		qty = riskAmount.Div(decimal.NewFromFloat(price)).Round(quantityScale)
	} else {
		qty = decimal.NewFromFloat(s.cfg.BasePositionSize).Round(quantityScale)
	}

	if qty.Sign() <= 0 {
		return 0, fmt.Errorf("%w: balance %f yields no tradable quantity at price %f", ports.ErrInsufficientFunds, balance, price)
	}
	return qty.InexactFloat64(), nil
}

// ProtectiveLevels computes stop loss and take profit for an entry at the
// given price. When ATR stops are enabled and an ATR value is supplied, the
// stop sits one ATR band away; otherwise a fixed percentage band is used.
// The fallback always produces a usable pair, never an error.
func (s *Sizer) ProtectiveLevels(side domain.OrderSide, price float64, atr *float64) Levels {
	if s.cfg.UseATRStopLoss && atr != nil && *atr > 0 {
		distance := *atr * s.cfg.ATRMultiplier
		if side == domain.Buy {
			return Levels{
				StopLoss:   price - distance,
				TakeProfit: price + distance*s.cfg.TakeProfitRatio,
			}
		}
		return Levels{
			StopLoss:   price + distance,
			TakeProfit: price - distance*s.cfg.TakeProfitRatio,
		}
	}

	if side == domain.Buy {
		return Levels{
			StopLoss:   price * (1 - fallbackRiskPercent),
			TakeProfit: price * (1 + fallbackRiskPercent*s.cfg.TakeProfitRatio),
		}
	}
	return Levels{
		StopLoss:   price * (1 + fallbackRiskPercent),
		TakeProfit: price * (1 - fallbackRiskPercent*s.cfg.TakeProfitRatio),
	}
}
