// Package execution turns approved signals into orders and positions and
// closes positions with offsetting orders.
package execution

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-trader/internal/models"
)

var (
	hundred          = decimal.NewFromInt(100)
	minProtectivePct = decimal.RequireFromString("0.1")
	maxProtectivePct = hundred
)

// SideFor returns buy for the bullish signal types and sell otherwise
func SideFor(t models.SignalType) string {
	if t.Bullish() {
		return models.SideBuy
	}
	return models.SideSell
}

// ProtectivePrices computes stop-loss and take-profit levels around price.
// Each percent is optional and clamped to [0.1, 100].
func ProtectivePrices(price decimal.Decimal, side string, stopPct, takePct decimal.NullDecimal) (stopLoss, takeProfit decimal.NullDecimal) {
	sign := decimal.NewFromInt(1)
	if side == models.SideSell {
		sign = sign.Neg()
	}
	if stopPct.Valid {
		p := ClampPercent(stopPct.Decimal)
		stopLoss = decimal.NewNullDecimal(price.Mul(decimal.NewFromInt(1).Sub(sign.Mul(p).Div(hundred))))
	}
	if takePct.Valid {
		p := ClampPercent(takePct.Decimal)
		takeProfit = decimal.NewNullDecimal(price.Mul(decimal.NewFromInt(1).Add(sign.Mul(p).Div(hundred))))
	}
	return stopLoss, takeProfit
}

// ClampPercent bounds a protective percent to [0.1, 100]
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(minProtectivePct) {
		return minProtectivePct
	}
	if p.GreaterThan(maxProtectivePct) {
		return maxProtectivePct
	}
	return p
}

// SignedQuantity is positive for buys and negative for sells
func SignedQuantity(qty int64, side string) decimal.Decimal {
	q := decimal.NewFromInt(qty)
	if side == models.SideSell {
		return q.Neg()
	}
	return q
}
