// Package marketdata provides bars and quotes to the scan and monitor passes.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

// ErrNoData is returned when a provider has nothing for a symbol
var ErrNoData = errors.New("no market data for symbol")

// Provider is the market-data collaborator. Calls are idempotent reads.
type Provider interface {
	// GetBars returns bars ordered most-recent-last
	GetBars(ctx context.Context, symbol string) ([]models.Bar, error)
	GetQuote(ctx context.Context, symbol string) (float64, error)
}

// Static serves fixed bars and quotes. Useful as a deterministic double.
type Static struct {
	mu     sync.RWMutex
	bars   map[string][]models.Bar
	quotes map[string]float64
}

// NewStatic creates an empty static provider
func NewStatic() *Static {
	return &Static{
		bars:   make(map[string][]models.Bar),
		quotes: make(map[string]float64),
	}
}

// SetBars replaces the series of a symbol
func (s *Static) SetBars(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = append([]models.Bar(nil), bars...)
}

// SetQuote overrides the quote of a symbol
func (s *Static) SetQuote(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = price
}

func (s *Static) GetBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return append([]models.Bar(nil), bars...), nil
}

// GetQuote returns the explicit quote, falling back to the last close
func (s *Static) GetQuote(ctx context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.quotes[symbol]; ok {
		return q, nil
	}
	if bars := s.bars[symbol]; len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoData, symbol)
}

// ClosesToBars builds one-minute bars starting at start, one per close
func ClosesToBars(start time.Time, volume int64, closes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    volume,
		}
	}
	return bars
}
