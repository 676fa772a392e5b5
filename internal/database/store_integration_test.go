package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/signal-trader/internal/broker"
	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/models"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()
	barTime := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

	seedRule := func(t *testing.T) *models.SignalRule {
		t.Helper()
		rule := &models.SignalRule{
			UserID:              "user-1",
			SignalType:          models.SignalBBBreakoutUp,
			Enabled:             true,
			PositionSizePercent: decimal.NewFromInt(5),
			MaxPositionValue:    decimal.NewFromInt(10000),
			StopLossPercent:     decimal.NewNullDecimal(decimal.NewFromInt(20)),
			TrailingStopPercent: decimal.NewNullDecimal(decimal.NewFromInt(5)),
		}
		require.NoError(t, testDB.CreateSignalRule(ctx, rule))
		return rule
	}

	newSignal := func(rule *models.SignalRule) *models.Signal {
		return &models.Signal{
			ID:            uuid.NewString(),
			UserID:        rule.UserID,
			RuleID:        rule.ID,
			Symbol:        "AAPL",
			SignalType:    rule.SignalType,
			PriceAtSignal: decimal.NewFromInt(150),
			BBUpper:       decimal.RequireFromString("144.86"),
			BBLower:       decimal.RequireFromString("136.14"),
			BBMiddle:      decimal.RequireFromString("140.5"),
			Volume:        1000,
			BarTime:       barTime,
			TriggeredAt:   barTime,
		}
	}

	t.Run("settings and watchlist round trip", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertTradingSettings(ctx, &models.TradingSettings{
			UserID: "user-1", AutoTradeEnabled: true, MaxDailyTrades: 3,
			MaxDailyLoss: decimal.NewFromInt(500), MaxPositionSize: decimal.NewFromInt(5000),
			TradingHoursStart: "09:30", TradingHoursEnd: "16:00",
		}))
		require.NoError(t, testDB.UpsertTradingSettings(ctx, &models.TradingSettings{
			UserID: "user-2", TradingHoursStart: "09:30", TradingHoursEnd: "16:00",
		}))

		users, err := testDB.ListAutoTradeSettings(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, 3, users[0].MaxDailyTrades)

		require.NoError(t, testDB.CreateWatchlistItem(ctx, &models.WatchlistItem{UserID: "user-1", Symbol: "AAPL", Enabled: true, BBPeriod: 20, BBStdDev: 2}))
		require.NoError(t, testDB.CreateWatchlistItem(ctx, &models.WatchlistItem{UserID: "user-1", Symbol: "MSFT", Enabled: false, BBPeriod: 20, BBStdDev: 2}))
		items, err := testDB.GetEnabledWatchlist(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 2.0, items[0].BBStdDev)
	})

	t.Run("signals are deduplicated per bar", func(t *testing.T) {
		testDB.TruncateAll(t)
		rule := seedRule(t)

		first, created, err := testDB.InsertSignal(ctx, newSignal(rule))
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := testDB.InsertSignal(ctx, newSignal(rule))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("execution is atomic and single-shot", func(t *testing.T) {
		testDB.TruncateAll(t)
		rule := seedRule(t)
		sig, _, err := testDB.InsertSignal(ctx, newSignal(rule))
		require.NoError(t, err)

		exec := execution.NewExecutor(testDB.DB, broker.NewPaper())
		res, err := exec.Execute(ctx, execution.Request{Signal: sig, Rule: rule, Quantity: 33})
		require.NoError(t, err)

		_, err = exec.Execute(ctx, execution.Request{Signal: sig, Rule: rule, Quantity: 33})
		assert.ErrorIs(t, err, execution.ErrAlreadyExecuted)

		stored, err := testDB.GetSignalByID(ctx, sig.ID)
		require.NoError(t, err)
		assert.True(t, stored.Executed)

		orders, err := testDB.GetOrdersByUser(ctx, "user-1", 10)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, res.Order.BrokerOrderID, orders[0].BrokerOrderID)

		open, err := testDB.GetOpenPositions(ctx)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.True(t, open[0].StopLossPrice.Decimal.Equal(decimal.NewFromInt(120)))

		count, err := testDB.CountOrdersSince(ctx, "user-1", barTime.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("broker fills flow into the daily P&L query", func(t *testing.T) {
		testDB.TruncateAll(t)
		rule := seedRule(t)
		sig, _, err := testDB.InsertSignal(ctx, newSignal(rule))
		require.NoError(t, err)

		res, err := execution.NewExecutor(testDB.DB, broker.NewPaper()).Execute(ctx, execution.Request{Signal: sig, Rule: rule, Quantity: 2})
		require.NoError(t, err)

		changed, err := testDB.UpdateOrderStatusByBrokerID(ctx, res.Order.BrokerOrderID, models.OrderStatusFilled)
		require.NoError(t, err)
		assert.True(t, changed)
		changed, err = testDB.UpdateOrderStatusByBrokerID(ctx, res.Order.BrokerOrderID, models.OrderStatusFilled)
		require.NoError(t, err)
		assert.False(t, changed)

		filled, err := testDB.GetFilledOrdersSince(ctx, "user-1", time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, filled, 1)
		assert.True(t, filled[0].SignedNotional().Equal(decimal.NewFromInt(-300)))
	})

	t.Run("positions close once and stop updating", func(t *testing.T) {
		testDB.TruncateAll(t)
		rule := seedRule(t)
		sig, _, err := testDB.InsertSignal(ctx, newSignal(rule))
		require.NoError(t, err)
		exec := execution.NewExecutor(testDB.DB, broker.NewPaper())
		res, err := exec.Execute(ctx, execution.Request{Signal: sig, Rule: rule, Quantity: 10})
		require.NoError(t, err)

		pos := res.Position
		pos.TrailingStopPrice = decimal.NewNullDecimal(decimal.RequireFromString("104.5"))
		pos.CurrentPrice = decimal.NewNullDecimal(decimal.NewFromInt(110))
		require.NoError(t, testDB.UpdatePositionMarks(ctx, pos))

		stale := *pos
		_, err = exec.ClosePosition(ctx, pos, models.CloseReasonTrailingStop, decimal.NewFromInt(104))
		require.NoError(t, err)
		_, err = exec.ClosePosition(ctx, &stale, models.CloseReasonManual, decimal.NewFromInt(104))
		assert.ErrorIs(t, err, execution.ErrPositionClosed)

		stored, err := testDB.GetPositionByID(ctx, pos.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsOpen)
		assert.Equal(t, models.CloseReasonTrailingStop, stored.CloseReason)
		require.NotNil(t, stored.ClosedAt)
		assert.ErrorIs(t, testDB.UpdatePositionMarks(ctx, stored), ErrNotFound)

		all, err := testDB.GetPositionsByUser(ctx, "user-1", false)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		openOnly, err := testDB.GetPositionsByUser(ctx, "user-1", true)
		require.NoError(t, err)
		assert.Empty(t, openOnly)
	})

	t.Run("recent price bars come back oldest first", func(t *testing.T) {
		testDB.TruncateAll(t)
		var bars []*models.PriceBar
		for i := 0; i < 5; i++ {
			bars = append(bars, models.NewPriceBar("AAPL", models.Bar{
				Timestamp: barTime.Add(time.Duration(i) * time.Minute),
				Open:      100, High: 101, Low: 99, Close: 100 + float64(i), Volume: 10,
			}))
		}
		require.NoError(t, testDB.UpsertPriceBarBatch(ctx, bars))

		recent, err := testDB.GetRecentPriceBars(ctx, "AAPL", 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.True(t, recent[0].Close.Equal(decimal.NewFromInt(102)))
		assert.True(t, recent[2].Close.Equal(decimal.NewFromInt(104)))
	})

	t.Run("indicator snapshots upsert", func(t *testing.T) {
		testDB.TruncateAll(t)
		row := &models.TechnicalIndicator{Symbol: "AAPL", Date: barTime, IndicatorType: models.IndicatorBBUpper, Value: decimal.NewFromInt(144)}
		require.NoError(t, testDB.SaveIndicators(ctx, []*models.TechnicalIndicator{row}))
		row.Value = decimal.NewFromInt(145)
		require.NoError(t, testDB.SaveIndicators(ctx, []*models.TechnicalIndicator{row}))

		latest, err := testDB.GetLatestIndicators(ctx, "AAPL")
		require.NoError(t, err)
		require.Len(t, latest, 1)
		assert.True(t, latest[0].Value.Equal(decimal.NewFromInt(145)))
	})
}
