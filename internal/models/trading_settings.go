package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradingSettings holds a user's auto-trading limits
type TradingSettings struct {
	UserID            string          `json:"user_id"`
	AutoTradeEnabled  bool            `json:"auto_trade_enabled"`
	MaxDailyTrades    int             `json:"max_daily_trades"`
	MaxDailyLoss      decimal.Decimal `json:"max_daily_loss"`
	MaxPositionSize   decimal.Decimal `json:"max_position_size"`
	TradingHoursStart string          `json:"trading_hours_start"` // HH:MM
	TradingHoursEnd   string          `json:"trading_hours_end"`   // HH:MM
	UpdatedAt         time.Time       `json:"updated_at"`
}
