package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusSubmitted))
	assert.True(t, CanTransition(OrderStatusSubmitted, OrderStatusFilled))
	assert.True(t, CanTransition(OrderStatusSubmitted, OrderStatusCancelled))

	assert.False(t, CanTransition(OrderStatusFilled, OrderStatusCancelled), "filled is terminal")
	assert.False(t, CanTransition(OrderStatusRejected, OrderStatusSubmitted), "rejected is terminal")
	assert.False(t, CanTransition(OrderStatusSubmitted, OrderStatusPending))
	assert.False(t, CanTransition("unknown", OrderStatusFilled))
}

func TestSignedNotional(t *testing.T) {
	buy := &Order{Side: SideBuy, Quantity: decimal.NewFromInt(10), LimitPrice: decimal.NewFromInt(50)}
	sell := &Order{Side: SideSell, Quantity: decimal.NewFromInt(10), LimitPrice: decimal.NewFromInt(45)}

	assert.True(t, buy.SignedNotional().Equal(decimal.NewFromInt(-500)))
	assert.True(t, sell.SignedNotional().Equal(decimal.NewFromInt(450)))
}

func TestSignalType(t *testing.T) {
	for _, st := range AllSignalTypes {
		assert.True(t, st.Valid(), string(st))
	}
	assert.False(t, SignalType("rsi_oversold").Valid())

	assert.True(t, SignalBBBreakoutUp.Bullish())
	assert.True(t, SignalVWAPCrossUp.Bullish())
	assert.False(t, SignalBBMeanReversionDown.Bullish())
	assert.False(t, SignalType("").Bullish())
}

func TestSignalRuleValidate(t *testing.T) {
	valid := func() *SignalRule {
		return &SignalRule{
			SignalType:          SignalBBBreakoutUp,
			PositionSizePercent: decimal.NewFromInt(5),
			MaxPositionValue:    decimal.NewFromInt(5000),
		}
	}

	assert.NoError(t, valid().Validate())

	r := valid()
	r.PositionSizePercent = decimal.NewFromInt(100)
	assert.NoError(t, r.Validate(), "100 percent is allowed")

	r = valid()
	r.PositionSizePercent = decimal.Zero
	assert.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = valid()
	r.PositionSizePercent = decimal.RequireFromString("100.01")
	assert.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = valid()
	r.MaxPositionValue = decimal.NewFromInt(-1)
	assert.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = valid()
	r.SignalType = "macd_cross"
	assert.ErrorIs(t, r.Validate(), ErrInvalidRule)
}

func TestPriceBarConversion(t *testing.T) {
	ts := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	bar := Bar{Timestamp: ts, Open: 10.5, High: 12, Low: 9.25, Close: 11.75, Volume: 300}

	pb := NewPriceBar("AAPL", bar)
	assert.Equal(t, "AAPL", pb.Symbol)
	assert.True(t, pb.Low.Equal(decimal.RequireFromString("9.25")))
	assert.Equal(t, bar, pb.ToBar())
	assert.InDelta(t, 11.0, bar.TypicalPrice(), 1e-9)
}

func TestPositionIsLong(t *testing.T) {
	assert.True(t, (&Position{Quantity: decimal.NewFromInt(3)}).IsLong())
	assert.False(t, (&Position{Quantity: decimal.NewFromInt(-3)}).IsLong())
}

func TestIndicatorRows(t *testing.T) {
	ts := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	rows := IndicatorRows("AAPL", ts, "", 110, 100, 90, nil)
	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, DefaultTimeframe, r.Timeframe)
		assert.Equal(t, ts, r.Date)
	}
	assert.Equal(t, IndicatorBBLower, rows[2].IndicatorType)

	vwap := 101.5
	rows = IndicatorRows("AAPL", ts, "5m", 110, 100, 90, &vwap)
	assert.Len(t, rows, 4)
	assert.Equal(t, IndicatorVWAP, rows[3].IndicatorType)
	assert.True(t, rows[3].Value.Equal(decimal.RequireFromString("101.5")))
	assert.Equal(t, "5m", rows[3].Timeframe)
}

func TestValidSymbol(t *testing.T) {
	for _, s := range []string{"AAPL", "BRK.B", "X", "RDS-A", "A123456789"} {
		assert.True(t, ValidSymbol(s), s)
	}
	for _, s := range []string{"", "aapl", "1ABC", "TOOLONGSYMBOL", "AA PL", "$SPY"} {
		assert.False(t, ValidSymbol(s), s)
	}
}
