package risk

import (
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/signal-trader/internal/models"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func baseSettings() *models.TradingSettings {
	return &models.TradingSettings{
		UserID:            "user-1",
		AutoTradeEnabled:  true,
		MaxDailyTrades:    5,
		MaxDailyLoss:      decimal.NewFromInt(1000),
		MaxPositionSize:   decimal.NewFromInt(10000),
		TradingHoursStart: "09:30",
		TradingHoursEnd:   "16:00",
	}
}

func filledOrder(side string, qty, price int64) *models.Order {
	return &models.Order{
		Side:       side,
		Quantity:   decimal.NewFromInt(qty),
		LimitPrice: decimal.NewFromInt(price),
		Status:     models.OrderStatusFilled,
	}
}

func TestGateEvaluate(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(loc)
	// 11:00 in New York
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, loc)

	t.Run("approves a healthy session", func(t *testing.T) {
		dec := gate.Evaluate(baseSettings(), SessionState{OrdersToday: 2}, now)
		assert.True(t, dec.Allowed)
		assert.Empty(t, dec.Reason)
		assert.Equal(t, 3, dec.TradesRemaining)
	})

	t.Run("auto-trade disabled short-circuits first", func(t *testing.T) {
		s := baseSettings()
		s.AutoTradeEnabled = false
		s.TradingHoursStart = "bogus"
		dec := gate.Evaluate(s, SessionState{OrdersToday: 100}, now)
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonAutoTradeDisabled, dec.Reason)
	})

	t.Run("outside trading hours", func(t *testing.T) {
		early := time.Date(2026, 3, 3, 9, 29, 0, 0, loc)
		dec := gate.Evaluate(baseSettings(), SessionState{}, early)
		assert.Equal(t, ReasonOutsideHours, dec.Reason)

		closing := time.Date(2026, 3, 3, 16, 0, 0, 0, loc)
		dec = gate.Evaluate(baseSettings(), SessionState{}, closing)
		assert.Equal(t, ReasonOutsideHours, dec.Reason, "end of window is exclusive")

		opening := time.Date(2026, 3, 3, 9, 30, 0, 0, loc)
		assert.True(t, gate.Evaluate(baseSettings(), SessionState{}, opening).Allowed)
	})

	t.Run("hours are evaluated in the trading location", func(t *testing.T) {
		// 15:00 UTC is 10:00 in New York
		utc := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
		assert.True(t, gate.Evaluate(baseSettings(), SessionState{}, utc).Allowed)
	})

	t.Run("invalid trading hours", func(t *testing.T) {
		s := baseSettings()
		s.TradingHoursEnd = "25:00"
		assert.Equal(t, ReasonInvalidTradingHours, gate.Evaluate(s, SessionState{}, now).Reason)
	})

	t.Run("max daily trades reached", func(t *testing.T) {
		s := baseSettings()
		s.MaxDailyTrades = 1
		dec := gate.Evaluate(s, SessionState{OrdersToday: 1}, now)
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonMaxDailyTrades, dec.Reason)
	})

	t.Run("max daily trades is clamped to at least one", func(t *testing.T) {
		s := baseSettings()
		s.MaxDailyTrades = 0
		dec := gate.Evaluate(s, SessionState{}, now)
		assert.True(t, dec.Allowed)
		assert.Equal(t, 1, dec.TradesRemaining)
	})

	t.Run("max daily loss reached", func(t *testing.T) {
		state := SessionState{
			OrdersToday: 2,
			FilledOrdersToday: []*models.Order{
				filledOrder(models.SideBuy, 10, 200),
				filledOrder(models.SideSell, 10, 100),
			},
		}
		dec := gate.Evaluate(baseSettings(), state, now)
		assert.False(t, dec.Allowed)
		assert.Equal(t, ReasonMaxDailyLoss, dec.Reason)
		assert.True(t, decimal.NewFromInt(-1000).Equal(dec.RealizedPnl))
	})

	t.Run("loss below the limit passes", func(t *testing.T) {
		state := SessionState{FilledOrdersToday: []*models.Order{filledOrder(models.SideBuy, 1, 999)}}
		assert.True(t, gate.Evaluate(baseSettings(), state, now).Allowed)
	})
}

func TestRealizedPnlIgnoresUnfilledOrders(t *testing.T) {
	submitted := filledOrder(models.SideBuy, 10, 100)
	submitted.Status = models.OrderStatusSubmitted
	orders := []*models.Order{
		submitted,
		filledOrder(models.SideSell, 2, 50),
	}
	assert.True(t, decimal.NewFromInt(100).Equal(RealizedPnl(orders)))
}

func TestWindowContains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 1, 1, h, m, 0, 0, time.UTC) }

	day, err := ParseWindow("09:30", "16:00")
	require.NoError(t, err)
	assert.True(t, day.Contains(at(9, 30)))
	assert.True(t, day.Contains(at(15, 59)))
	assert.False(t, day.Contains(at(16, 0)))

	overnight, err := ParseWindow("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, overnight.Contains(at(23, 0)))
	assert.True(t, overnight.Contains(at(1, 59)))
	assert.False(t, overnight.Contains(at(2, 0)))
	assert.False(t, overnight.Contains(at(12, 0)))

	empty, err := ParseWindow("10:00", "10:00")
	require.NoError(t, err)
	assert.False(t, empty.Contains(at(10, 0)))

	_, err = ParseWindow("9", "10:00")
	assert.Error(t, err)

	for _, bad := range []string{"09:30:00", "9:30", " 9:30", "24:00", "12:60", "+9:30", "ab:cd"} {
		_, err = ParseWindow(bad, "16:00")
		assert.Error(t, err, bad)
	}
}

func TestSessionBudget(t *testing.T) {
	t.Run("rejected decision has no budget", func(t *testing.T) {
		s := NewSession(Decision{Allowed: false, TradesRemaining: 3})
		assert.False(t, s.Reserve())
	})

	t.Run("concurrent reserves never exceed the budget", func(t *testing.T) {
		s := NewSession(Decision{Allowed: true, TradesRemaining: 3})
		var wg sync.WaitGroup
		var mu sync.Mutex
		granted := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Reserve() {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, granted)
		assert.Equal(t, 0, s.Remaining())

		s.Release()
		assert.True(t, s.Reserve())
	})
}

func TestStartOfDay(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(loc)
	// 02:00 UTC on the 4th is still the 3rd in New York
	now := time.Date(2026, 3, 4, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, loc), gate.StartOfDay(now))
}
