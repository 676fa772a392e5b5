package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order side constants
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order status constants
const (
	OrderStatusPending   = "pending"
	OrderStatusSubmitted = "submitted"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusSubmitted, OrderStatusCancelled, OrderStatusRejected},
	OrderStatusSubmitted: {OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected},
}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is an order placed for a user, usually on behalf of a signal
type Order struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	SignalID            *string             `json:"signal_id,omitempty"`
	PositionID          *string             `json:"position_id,omitempty"`
	Symbol              string              `json:"symbol"`
	Side                string              `json:"side"`
	Quantity            decimal.Decimal     `json:"quantity"`
	LimitPrice          decimal.Decimal     `json:"limit_price"`
	Status              string              `json:"status"`
	Strategy            string              `json:"strategy"`
	TrailingStopPercent decimal.NullDecimal `json:"trailing_stop_percent"`
	StopLossPrice       decimal.NullDecimal `json:"stop_loss_price"`
	TakeProfitPrice     decimal.NullDecimal `json:"take_profit_price"`
	BrokerOrderID       string              `json:"broker_order_id,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// SignedNotional returns price×quantity, negative for buys and positive for sells
func (o *Order) SignedNotional() decimal.Decimal {
	notional := o.LimitPrice.Mul(o.Quantity)
	if o.Side == SideBuy {
		return notional.Neg()
	}
	return notional
}
