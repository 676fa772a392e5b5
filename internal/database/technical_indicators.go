package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

// SaveIndicators upserts an indicator snapshot in one transaction
func (db *DB) SaveIndicators(ctx context.Context, indicators []*models.TechnicalIndicator) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO technical_indicators (symbol, date, indicator_type, value, timeframe, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, date, indicator_type, timeframe) DO UPDATE SET
			value = EXCLUDED.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range indicators {
		if t.Timeframe == "" {
			t.Timeframe = models.DefaultTimeframe
		}
		if _, err := stmt.ExecContext(ctx, t.Symbol, t.Date, t.IndicatorType, t.Value, t.Timeframe, now); err != nil {
			return fmt.Errorf("failed to insert indicator for %s: %w", t.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetLatestIndicators returns the most recent value of each indicator type
func (db *DB) GetLatestIndicators(ctx context.Context, symbol string) ([]*models.TechnicalIndicator, error) {
	return db.queryIndicators(ctx, `
		SELECT DISTINCT ON (indicator_type)
			id, symbol, date, indicator_type, value, timeframe, created_at
		FROM technical_indicators
		WHERE symbol = $1
		ORDER BY indicator_type, date DESC
	`, symbol)
}

// GetIndicatorHistory returns recent values of one indicator, newest first
func (db *DB) GetIndicatorHistory(ctx context.Context, symbol, indicatorType string, limit int) ([]*models.TechnicalIndicator, error) {
	return db.queryIndicators(ctx, `
		SELECT id, symbol, date, indicator_type, value, timeframe, created_at
		FROM technical_indicators
		WHERE symbol = $1 AND indicator_type = $2
		ORDER BY date DESC
		LIMIT $3
	`, symbol, indicatorType, limit)
}

// DeleteIndicatorsOlderThan removes indicators before cutoff
func (db *DB) DeleteIndicatorsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM technical_indicators WHERE date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old indicators: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) queryIndicators(ctx context.Context, query string, args ...any) ([]*models.TechnicalIndicator, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}
	defer rows.Close()

	var indicators []*models.TechnicalIndicator
	for rows.Next() {
		var t models.TechnicalIndicator
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Date, &t.IndicatorType, &t.Value, &t.Timeframe, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		indicators = append(indicators, &t)
	}
	return indicators, rows.Err()
}
