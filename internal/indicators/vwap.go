package indicators

import "github.com/trogers1052/signal-trader/internal/models"

// VWAP returns the cumulative volume-weighted average of the bars' typical
// price, accumulated in bar order. It returns 0 when total volume is 0.
//
// The value depends on the window supplied, so callers must pass the same
// ordered window they use for the bands.
func VWAP(bars []models.Bar) float64 {
	var cumPV, cumVolume float64
	for _, b := range bars {
		v := float64(b.Volume)
		cumPV += b.TypicalPrice() * v
		cumVolume += v
	}
	if cumVolume == 0 {
		return 0
	}
	return cumPV / cumVolume
}

// Closes extracts close prices in order
func Closes(bars []models.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
