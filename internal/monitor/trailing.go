// Package monitor refreshes open positions and closes those whose stop-loss,
// take-profit or trailing stop has been reached.
package monitor

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/models"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Evaluation is the new mark of a position and the trigger it hit, if any
type Evaluation struct {
	CurrentPrice      decimal.Decimal
	UnrealizedPnl     decimal.Decimal
	TrailingStopPrice decimal.NullDecimal
	Trigger           string
}

// Ratchet moves the trailing stop toward price. Long stops never decrease and
// short stops never increase. Without a trailing percent the old stop is kept.
func Ratchet(pos *models.Position, price decimal.Decimal) decimal.NullDecimal {
	if !pos.TrailingStopPercent.Valid {
		return pos.TrailingStopPrice
	}
	pct := execution.ClampPercent(pos.TrailingStopPercent.Decimal).Div(hundred)
	old := pos.TrailingStopPrice

	if pos.IsLong() {
		candidate := price.Mul(one.Sub(pct))
		if old.Valid && old.Decimal.GreaterThanOrEqual(candidate) {
			return old
		}
		return decimal.NewNullDecimal(candidate)
	}

	candidate := price.Mul(one.Add(pct))
	if old.Valid && old.Decimal.LessThanOrEqual(candidate) {
		return old
	}
	return decimal.NewNullDecimal(candidate)
}

// Evaluate marks pos at price, ratchets its trailing stop, and checks the
// close triggers in priority order: stop-loss, take-profit, trailing stop.
func Evaluate(pos *models.Position, price decimal.Decimal) Evaluation {
	ev := Evaluation{
		CurrentPrice:      price,
		UnrealizedPnl:     price.Sub(pos.AvgCost).Mul(pos.Quantity),
		TrailingStopPrice: Ratchet(pos, price),
	}

	long := pos.IsLong()
	// adverse reports whether price is at or beyond level against the position
	adverse := func(level decimal.Decimal) bool {
		if long {
			return price.LessThanOrEqual(level)
		}
		return price.GreaterThanOrEqual(level)
	}
	favorable := func(level decimal.Decimal) bool {
		if long {
			return price.GreaterThanOrEqual(level)
		}
		return price.LessThanOrEqual(level)
	}

	switch {
	case pos.StopLossPrice.Valid && adverse(pos.StopLossPrice.Decimal):
		ev.Trigger = models.CloseReasonStopLoss
	case pos.TakeProfitPrice.Valid && favorable(pos.TakeProfitPrice.Decimal):
		ev.Trigger = models.CloseReasonTakeProfit
	case ev.TrailingStopPrice.Valid && adverse(ev.TrailingStopPrice.Decimal):
		ev.Trigger = models.CloseReasonTrailingStop
	}
	return ev
}
