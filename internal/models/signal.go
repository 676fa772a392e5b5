package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType identifies a detected crossing
type SignalType string

// Signal type constants
const (
	SignalBBBreakoutUp        SignalType = "bb_breakout_up"
	SignalBBBreakoutDown      SignalType = "bb_breakout_down"
	SignalBBMeanReversionUp   SignalType = "bb_mean_reversion_up"
	SignalBBMeanReversionDown SignalType = "bb_mean_reversion_down"
	SignalVWAPCrossUp         SignalType = "vwap_cross_up"
	SignalVWAPCrossDown       SignalType = "vwap_cross_down"
)

// AllSignalTypes lists every signal type in detection order
var AllSignalTypes = []SignalType{
	SignalBBBreakoutUp,
	SignalBBBreakoutDown,
	SignalBBMeanReversionUp,
	SignalBBMeanReversionDown,
	SignalVWAPCrossUp,
	SignalVWAPCrossDown,
}

// Valid reports whether t is a known signal type
func (t SignalType) Valid() bool {
	for _, known := range AllSignalTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Bullish reports whether the signal opens a long position
func (t SignalType) Bullish() bool {
	switch t {
	case SignalBBBreakoutUp, SignalBBMeanReversionUp, SignalVWAPCrossUp:
		return true
	}
	return false
}

// Signal is a detected crossing matched to one rule
type Signal struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	RuleID        string              `json:"rule_id"`
	Symbol        string              `json:"symbol"`
	SignalType    SignalType          `json:"signal_type"`
	PriceAtSignal decimal.Decimal     `json:"price_at_signal"`
	BBUpper       decimal.Decimal     `json:"bb_upper"`
	BBLower       decimal.Decimal     `json:"bb_lower"`
	BBMiddle      decimal.Decimal     `json:"bb_middle"`
	VWAP          decimal.NullDecimal `json:"vwap"`
	Volume        int64               `json:"volume"`
	Executed      bool                `json:"executed"`
	BarTime       time.Time           `json:"bar_time"`
	TriggeredAt   time.Time           `json:"triggered_at"`
}
