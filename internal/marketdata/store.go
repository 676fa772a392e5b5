package marketdata

import (
	"context"
	"fmt"

	"github.com/trogers1052/signal-trader/internal/models"
)

// BarStore reads persisted bars, most-recent-last
type BarStore interface {
	GetRecentPriceBars(ctx context.Context, symbol string, limit int) ([]*models.PriceBar, error)
}

// Store serves bars ingested into Postgres by the market consumer
type Store struct {
	bars     BarStore
	lookback int
}

// NewStore creates a provider over the price_bars table
func NewStore(bars BarStore, lookback int) *Store {
	return &Store{bars: bars, lookback: lookback}
}

func (s *Store) GetBars(ctx context.Context, symbol string) ([]models.Bar, error) {
	rows, err := s.bars.GetRecentPriceBars(ctx, symbol, s.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.ToBar()
	}
	return bars, nil
}

// GetQuote is the close of the latest stored bar
func (s *Store) GetQuote(ctx context.Context, symbol string) (float64, error) {
	rows, err := s.bars.GetRecentPriceBars(ctx, symbol, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest price bar: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return rows[len(rows)-1].Close.InexactFloat64(), nil
}
