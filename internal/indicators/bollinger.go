// Package indicators computes the technical indicators used by the scanner.
// All functions are pure and never modify their inputs.
package indicators

import "math"

// Bands is a Bollinger Bands triple
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerBands computes bands over the last period prices using the
// population variance. ok is false when there are fewer than period prices.
func BollingerBands(prices []float64, period int, stdDevMultiplier float64) (Bands, bool) {
	if period <= 0 || len(prices) < period {
		return Bands{}, false
	}

	window := prices[len(prices)-period:]

	sum := 0.0
	for _, p := range window {
		sum += p
	}
	middle := sum / float64(period)

	variance := 0.0
	for _, p := range window {
		diff := p - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return Bands{
		Upper:  middle + stdDevMultiplier*stdDev,
		Middle: middle,
		Lower:  middle - stdDevMultiplier*stdDev,
	}, true
}
