package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// ErrInvalidRule is returned by SignalRule.Validate
	ErrInvalidRule = errors.New("invalid signal rule")
)

// SignalRule tells the engine what to do when a signal type fires for a user
type SignalRule struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	SignalType          SignalType          `json:"signal_type"`
	Enabled             bool                `json:"enabled"`
	OptionStrategy      string              `json:"option_strategy"`
	PositionSizePercent decimal.Decimal     `json:"position_size_percent"`
	MaxPositionValue    decimal.Decimal     `json:"max_position_value"`
	TrailingStopPercent decimal.NullDecimal `json:"trailing_stop_percent"`
	StopLossPercent     decimal.NullDecimal `json:"stop_loss_percent"`
	TakeProfitPercent   decimal.NullDecimal `json:"take_profit_percent"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Validate checks positionSizePercent ∈ (0,100] and maxPositionValue > 0
func (r *SignalRule) Validate() error {
	if !r.SignalType.Valid() {
		return fmt.Errorf("%w: unknown signal type %q", ErrInvalidRule, r.SignalType)
	}
	if !r.PositionSizePercent.IsPositive() || r.PositionSizePercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: position size percent %s out of (0,100]", ErrInvalidRule, r.PositionSizePercent)
	}
	if !r.MaxPositionValue.IsPositive() {
		return fmt.Errorf("%w: max position value must be positive", ErrInvalidRule)
	}
	return nil
}
