package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV sample. Series are ordered by Timestamp ascending.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// TypicalPrice returns (high+low+close)/3
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// PriceBar represents a persisted OHLCV bar for a symbol
type PriceBar struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	BarTime   time.Time       `json:"bar_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToBar converts the persisted row into the float form used by the indicators
func (p *PriceBar) ToBar() Bar {
	return Bar{
		Timestamp: p.BarTime,
		Open:      p.Open.InexactFloat64(),
		High:      p.High.InexactFloat64(),
		Low:       p.Low.InexactFloat64(),
		Close:     p.Close.InexactFloat64(),
		Volume:    p.Volume,
	}
}

// NewPriceBar builds a persisted bar from a float bar
func NewPriceBar(symbol string, b Bar) *PriceBar {
	return &PriceBar{
		Symbol:  symbol,
		BarTime: b.Timestamp,
		Open:    decimal.NewFromFloat(b.Open),
		High:    decimal.NewFromFloat(b.High),
		Low:     decimal.NewFromFloat(b.Low),
		Close:   decimal.NewFromFloat(b.Close),
		Volume:  b.Volume,
	}
}
