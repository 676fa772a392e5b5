package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Close reason constants
const (
	CloseReasonStopLoss     = "stop_loss"
	CloseReasonTakeProfit   = "take_profit"
	CloseReasonTrailingStop = "trailing_stop"
	CloseReasonManual       = "manual"
)

// Position is a holding opened by an order. Quantity is signed: positive is long.
type Position struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	OrderID             string              `json:"order_id"`
	Symbol              string              `json:"symbol"`
	Quantity            decimal.Decimal     `json:"quantity"`
	AvgCost             decimal.Decimal     `json:"avg_cost"`
	CurrentPrice        decimal.NullDecimal `json:"current_price"`
	UnrealizedPnl       decimal.NullDecimal `json:"unrealized_pnl"`
	TrailingStopPercent decimal.NullDecimal `json:"trailing_stop_percent"`
	TrailingStopPrice   decimal.NullDecimal `json:"trailing_stop_price"`
	StopLossPrice       decimal.NullDecimal `json:"stop_loss_price"`
	TakeProfitPrice     decimal.NullDecimal `json:"take_profit_price"`
	IsOpen              bool                `json:"is_open"`
	OpenedAt            time.Time           `json:"opened_at"`
	ClosedAt            *time.Time          `json:"closed_at,omitempty"`
	CloseReason         string              `json:"close_reason,omitempty"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// IsLong reports whether the position holds a positive quantity
func (p *Position) IsLong() bool {
	return p.Quantity.IsPositive()
}
