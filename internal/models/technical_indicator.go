package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Indicator types persisted per scanned bar
const (
	IndicatorBBUpper  = "BB_UPPER"
	IndicatorBBMiddle = "BB_MIDDLE"
	IndicatorBBLower  = "BB_LOWER"
	IndicatorVWAP     = "VWAP"
)

// DefaultTimeframe is used when a snapshot row has none
const DefaultTimeframe = "1m"

// TechnicalIndicator is one indicator value of a symbol at a bar time.
// (symbol, date, indicator_type, timeframe) is unique.
type TechnicalIndicator struct {
	ID            int             `json:"id"`
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	IndicatorType string          `json:"indicator_type"`
	Value         decimal.Decimal `json:"value"`
	Timeframe     string          `json:"timeframe"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IndicatorRows builds the snapshot rows of one bar. vwap is omitted when nil.
func IndicatorRows(symbol string, barTime time.Time, timeframe string, upper, middle, lower float64, vwap *float64) []*TechnicalIndicator {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	row := func(kind string, v float64) *TechnicalIndicator {
		return &TechnicalIndicator{
			Symbol:        symbol,
			Date:          barTime,
			IndicatorType: kind,
			Value:         decimal.NewFromFloat(v),
			Timeframe:     timeframe,
		}
	}
	rows := []*TechnicalIndicator{
		row(IndicatorBBUpper, upper),
		row(IndicatorBBMiddle, middle),
		row(IndicatorBBLower, lower),
	}
	if vwap != nil {
		rows = append(rows, row(IndicatorVWAP, *vwap))
	}
	return rows
}
