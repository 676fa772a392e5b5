package risk

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-trader/internal/models"
)

var (
	hundred             = decimal.NewFromInt(100)
	minPositionPercent  = decimal.RequireFromString("0.1")
	maxPositionPercent  = hundred
	minMaxPositionValue = decimal.NewFromInt(100)
	maxMaxPositionValue = decimal.NewFromInt(1_000_000)
)

// SizingInput gathers everything position sizing depends on
type SizingInput struct {
	MaxPositionSize decimal.Decimal // from TradingSettings
	Rule            *models.SignalRule
	AccountValue    decimal.Decimal
	Price           decimal.Decimal
}

// ValidPrice reports whether p can be used as a signal price
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// Size returns floor(min(maxPositionSize, rule max value, account×pct/100) / price).
// A non-empty reason means the signal must be skipped.
func Size(in SizingInput) (int64, string) {
	if !in.Price.IsPositive() {
		return 0, ReasonInvalidPrice
	}

	pct := clampDecimal(in.Rule.PositionSizePercent, minPositionPercent, maxPositionPercent)
	ruleMax := clampDecimal(in.Rule.MaxPositionValue, minMaxPositionValue, maxMaxPositionValue)
	byAccount := in.AccountValue.Mul(pct).Div(hundred)

	budget := decimal.Min(in.MaxPositionSize, ruleMax, byAccount)
	qty := budget.Div(in.Price).Floor()
	if !qty.IsPositive() {
		return 0, ReasonPositionTooSmall
	}
	return qty.IntPart(), ""
}
