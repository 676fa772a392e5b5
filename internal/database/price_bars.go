package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

const priceBarUpsert = `
	INSERT INTO price_bars (symbol, bar_time, open, high, low, close, volume, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, bar_time) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
	RETURNING id
`

// UpsertPriceBar inserts a bar or replaces the bar at the same time
func (db *DB) UpsertPriceBar(ctx context.Context, p *models.PriceBar) error {
	now := time.Now().UTC()
	err := db.conn.QueryRowContext(ctx, priceBarUpsert,
		p.Symbol, p.BarTime, p.Open, p.High, p.Low, p.Close, p.Volume, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert price bar: %w", err)
	}
	p.CreatedAt = now
	return nil
}

// UpsertPriceBarBatch upserts bars in one transaction
func (db *DB) UpsertPriceBarBatch(ctx context.Context, bars []*models.PriceBar) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, priceBarUpsert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range bars {
		err := stmt.QueryRowContext(ctx, p.Symbol, p.BarTime, p.Open, p.High, p.Low, p.Close, p.Volume, now).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert price bar for %s: %w", p.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRecentPriceBars returns the last limit bars of a symbol, oldest first
func (db *DB) GetRecentPriceBars(ctx context.Context, symbol string, limit int) ([]*models.PriceBar, error) {
	query := `
		SELECT id, symbol, bar_time, open, high, low, close, volume, created_at
		FROM (
			SELECT id, symbol, bar_time, open, high, low, close, volume, created_at
			FROM price_bars
			WHERE symbol = $1
			ORDER BY bar_time DESC
			LIMIT $2
		) recent
		ORDER BY bar_time ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	defer rows.Close()

	var bars []*models.PriceBar
	for rows.Next() {
		var p models.PriceBar
		err := rows.Scan(&p.ID, &p.Symbol, &p.BarTime, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, &p)
	}
	return bars, rows.Err()
}

// DeletePriceBarsOlderThan removes bars before cutoff
func (db *DB) DeletePriceBarsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM price_bars WHERE bar_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price bars: %w", err)
	}
	return result.RowsAffected()
}
