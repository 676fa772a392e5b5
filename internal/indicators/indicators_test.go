package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/signal-trader/internal/models"
)

func TestBollingerBands(t *testing.T) {
	t.Run("returns false for series shorter than period", func(t *testing.T) {
		for n := 0; n < 20; n++ {
			prices := make([]float64, n)
			for i := range prices {
				prices[i] = 100 + float64(i)
			}
			_, ok := BollingerBands(prices, 20, 2)
			assert.False(t, ok, "length %d", n)
		}
	})

	t.Run("constant series has zero width", func(t *testing.T) {
		prices := make([]float64, 20)
		for i := range prices {
			prices[i] = 100
		}
		bands, ok := BollingerBands(prices, 20, 2)
		require.True(t, ok)
		assert.Equal(t, 100.0, bands.Upper)
		assert.Equal(t, 100.0, bands.Middle)
		assert.Equal(t, 100.0, bands.Lower)
	})

	t.Run("uses population variance over the trailing window", func(t *testing.T) {
		// Window 2,4,4,4,5,5,7,9 has mean 5 and population std dev 2
		prices := []float64{1000, 2, 4, 4, 4, 5, 5, 7, 9}
		bands, ok := BollingerBands(prices, 8, 2)
		require.True(t, ok)
		assert.InDelta(t, 5.0, bands.Middle, 1e-12)
		assert.InDelta(t, 9.0, bands.Upper, 1e-12)
		assert.InDelta(t, 1.0, bands.Lower, 1e-12)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		prices := []float64{3, 1, 2}
		_, ok := BollingerBands(prices, 3, 1)
		require.True(t, ok)
		assert.Equal(t, []float64{3, 1, 2}, prices)
	})

	t.Run("rejects non-positive period", func(t *testing.T) {
		_, ok := BollingerBands([]float64{1, 2, 3}, 0, 2)
		assert.False(t, ok)
	})
}

func TestVWAP(t *testing.T) {
	t.Run("single bar equals typical price regardless of volume", func(t *testing.T) {
		for _, volume := range []int64{1, 7, 1_000_000} {
			bar := models.Bar{High: 12, Low: 9, Close: 10.5, Volume: volume}
			assert.InDelta(t, 10.5, VWAP([]models.Bar{bar}), 1e-12)
		}
	})

	t.Run("zero volume returns zero", func(t *testing.T) {
		bars := []models.Bar{{High: 10, Low: 9, Close: 9.5}, {High: 11, Low: 10, Close: 10.5}}
		assert.Equal(t, 0.0, VWAP(bars))
	})

	t.Run("weights typical price by volume", func(t *testing.T) {
		bars := []models.Bar{
			{High: 10, Low: 10, Close: 10, Volume: 100},
			{High: 20, Low: 20, Close: 20, Volume: 300},
		}
		assert.InDelta(t, 17.5, VWAP(bars), 1e-12)
	})

	t.Run("longer history changes the value", func(t *testing.T) {
		bars := []models.Bar{
			{High: 10, Low: 10, Close: 10, Volume: 100},
			{High: 20, Low: 20, Close: 20, Volume: 100},
		}
		assert.NotEqual(t, VWAP(bars[1:]), VWAP(bars))
	})
}

func TestFromWatchlist(t *testing.T) {
	t.Run("valid item with vwap", func(t *testing.T) {
		set, err := FromWatchlist(&models.WatchlistItem{BBPeriod: 20, BBStdDev: 2, VWAPEnabled: true})
		require.NoError(t, err)
		require.NotNil(t, set.VWAP)
		kinds := []Kind{}
		for _, c := range set.Configs() {
			kinds = append(kinds, c.Kind())
		}
		assert.Equal(t, []Kind{KindBollinger, KindVWAP}, kinds)
	})

	t.Run("out of bounds parameters are rejected", func(t *testing.T) {
		cases := []models.WatchlistItem{
			{BBPeriod: 1, BBStdDev: 2},
			{BBPeriod: 501, BBStdDev: 2},
			{BBPeriod: 20, BBStdDev: 0},
			{BBPeriod: 20, BBStdDev: 11},
			{BBPeriod: 20, BBStdDev: math.NaN()},
		}
		for _, item := range cases {
			item := item
			_, err := FromWatchlist(&item)
			assert.ErrorIs(t, err, ErrInvalidConfig, "item %+v", item)
		}
	})
}

func TestSetFitsWindow(t *testing.T) {
	set, err := FromWatchlist(&models.WatchlistItem{BBPeriod: 150, BBStdDev: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, set.FitsWindow(100), ErrWindowTooShort)
	assert.NoError(t, set.FitsWindow(150))
	assert.NoError(t, set.FitsWindow(0))
	assert.Equal(t, 150, set.MinBars())

	short := Set{Bollinger: BollingerConfig{Period: 2, StdDev: 2}}
	assert.Equal(t, 2, short.MinBars())
	assert.NoError(t, short.FitsWindow(2))
}

func TestSetCompute(t *testing.T) {
	base := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, 21)
	for i := range bars {
		price := 140.0
		if i == 20 {
			price = 150
		}
		bars[i] = models.Bar{Timestamp: base.Add(time.Duration(i) * time.Minute), Open: price, High: price, Low: price, Close: price, Volume: 1000}
	}

	set := Set{Bollinger: BollingerConfig{Period: 20, StdDev: 2}, VWAP: &VWAPConfig{}}
	snap, ok := set.Compute(bars)
	require.True(t, ok)
	assert.Equal(t, 150.0, snap.Current)
	assert.Equal(t, 140.0, snap.Previous)
	assert.Equal(t, bars[20].Timestamp, snap.Last.Timestamp)
	assert.True(t, snap.VWAPEnabled)
	assert.Greater(t, snap.Current, snap.Bands.Upper)

	_, ok = set.Compute(bars[:19])
	assert.False(t, ok)
}
