// Package risk decides whether a user's matched signals may be executed and
// at what size.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/signal-trader/internal/models"
)

// Skip reasons reported by the gate and by sizing
const (
	ReasonAutoTradeDisabled   = "auto-trade disabled"
	ReasonOutsideHours        = "outside trading hours"
	ReasonMaxDailyTrades      = "max daily trades reached"
	ReasonMaxDailyLoss        = "max daily loss reached"
	ReasonInvalidTradingHours = "invalid trading hours"
	ReasonPositionTooSmall    = "position too small"
	ReasonInvalidPrice        = "invalid price"
)

// Clamp bounds
const (
	MinDailyTrades = 1
	MaxDailyTrades = 1000
)

var (
	minDailyLoss = decimal.Zero
	maxDailyLoss = decimal.NewFromInt(1_000_000)
)

// SessionState is what the store knows about the user's trading day
type SessionState struct {
	OrdersToday       int
	FilledOrdersToday []*models.Order
}

// Decision is the result of evaluating one user's session
type Decision struct {
	Allowed         bool            `json:"allowed"`
	Reason          string          `json:"reason,omitempty"`
	OrdersToday     int             `json:"orders_today"`
	MaxDailyTrades  int             `json:"max_daily_trades"`
	RealizedPnl     decimal.Decimal `json:"realized_pnl"`
	TradesRemaining int             `json:"trades_remaining"`
}

// Gate evaluates trading sessions in a fixed trading location
type Gate struct {
	Location *time.Location
}

// NewGate creates a gate for the given trading calendar location.
// A nil location means UTC.
func NewGate(loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{Location: loc}
}

// StartOfDay returns midnight of now's date in the gate's location
func (g *Gate) StartOfDay(now time.Time) time.Time {
	local := now.In(g.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.Location)
}

// Evaluate runs the session checks in order and stops at the first failure
func (g *Gate) Evaluate(settings *models.TradingSettings, state SessionState, now time.Time) Decision {
	maxTrades := clampInt(settings.MaxDailyTrades, MinDailyTrades, MaxDailyTrades)
	pnl := RealizedPnl(state.FilledOrdersToday)
	dec := Decision{
		OrdersToday:    state.OrdersToday,
		MaxDailyTrades: maxTrades,
		RealizedPnl:    pnl,
	}

	if !settings.AutoTradeEnabled {
		dec.Reason = ReasonAutoTradeDisabled
		return dec
	}

	window, err := ParseWindow(settings.TradingHoursStart, settings.TradingHoursEnd)
	if err != nil {
		dec.Reason = ReasonInvalidTradingHours
		return dec
	}
	if !window.Contains(now.In(g.Location)) {
		dec.Reason = ReasonOutsideHours
		return dec
	}

	if state.OrdersToday >= maxTrades {
		dec.Reason = ReasonMaxDailyTrades
		return dec
	}

	lossLimit := clampDecimal(settings.MaxDailyLoss, minDailyLoss, maxDailyLoss)
	if pnl.LessThanOrEqual(lossLimit.Neg()) {
		dec.Reason = ReasonMaxDailyLoss
		return dec
	}

	dec.Allowed = true
	dec.TradesRemaining = maxTrades - state.OrdersToday
	return dec
}

// RealizedPnl sums signed notionals of filled orders: buys count negative,
// sells positive.
func RealizedPnl(orders []*models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status != models.OrderStatusFilled {
			continue
		}
		total = total.Add(o.SignedNotional())
	}
	return total
}

// Window is a half-open [Start, End) span of minutes after midnight. When
// Start > End the window wraps midnight.
type Window struct {
	Start int
	End   int
}

// ParseWindow parses "HH:MM" bounds
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether t's wall clock falls inside the window
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case w.Start < w.End:
		return m >= w.Start && m < w.End
	case w.Start > w.End:
		return m >= w.Start || m < w.End
	default:
		return false
	}
}

// parseClock accepts exactly HH:MM on a 24 hour clock
func parseClock(v string) (int, error) {
	if len(v) != 5 || v[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM", v)
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
