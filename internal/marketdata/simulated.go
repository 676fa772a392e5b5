package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

const minute = time.Minute

// Simulated generates a seeded random walk per symbol. The same seed and
// call sequence always yields the same series.
type Simulated struct {
	Lookback  int
	StartFrom float64
	Drift     float64
	Vol       float64
	Clock     func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	series map[string][]models.Bar
}

// NewSimulated creates a simulated feed with lookback bars per symbol
func NewSimulated(seed int64, lookback int) *Simulated {
	if lookback < 2 {
		lookback = 2
	}
	return &Simulated{
		Lookback:  lookback,
		StartFrom: 100,
		Vol:       0.01,
		Clock:     time.Now,
		rng:       rand.New(rand.NewSource(seed)),
		series:    make(map[string][]models.Bar),
	}
}

// GetBars advances the walk by one bar and returns the trailing window
func (s *Simulated) GetBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bars := s.seed(symbol)
	bars = append(bars, s.step(bars[len(bars)-1]))
	if len(bars) > s.Lookback {
		bars = bars[len(bars)-s.Lookback:]
	}
	s.series[symbol] = bars
	return append([]models.Bar(nil), bars...), nil
}

// GetQuote returns the last close without advancing the walk
func (s *Simulated) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.seed(symbol)
	return bars[len(bars)-1].Close, nil
}

func (s *Simulated) seed(symbol string) []models.Bar {
	if bars, ok := s.series[symbol]; ok {
		return bars
	}
	now := s.Clock().Truncate(minute)
	first := models.Bar{
		Timestamp: now.Add(-minute * time.Duration(s.Lookback-1)),
		Open:      s.StartFrom,
		High:      s.StartFrom,
		Low:       s.StartFrom,
		Close:     s.StartFrom,
		Volume:    1000,
	}
	bars := []models.Bar{first}
	for len(bars) < s.Lookback-1 {
		bars = append(bars, s.step(bars[len(bars)-1]))
	}
	s.series[symbol] = bars
	return bars
}

func (s *Simulated) step(prev models.Bar) models.Bar {
	ret := s.Drift + s.Vol*s.rng.NormFloat64()
	closePrice := round2(math.Max(0.01, prev.Close*(1+ret)))
	spread := math.Abs(s.Vol*s.rng.NormFloat64()) * closePrice
	return models.Bar{
		Timestamp: prev.Timestamp.Add(minute),
		Open:      prev.Close,
		High:      round2(math.Max(prev.Close, closePrice) + spread),
		Low:       round2(math.Max(0.01, math.Min(prev.Close, closePrice)-spread)),
		Close:     closePrice,
		Volume:    500 + s.rng.Int63n(10_000),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
