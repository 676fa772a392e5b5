package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

const settingsColumns = `user_id, auto_trade_enabled, max_daily_trades, max_daily_loss,
	max_position_size, trading_hours_start, trading_hours_end, updated_at`

// UpsertTradingSettings creates or replaces a user's settings
func (db *DB) UpsertTradingSettings(ctx context.Context, s *models.TradingSettings) error {
	query := `
		INSERT INTO trading_settings (` + settingsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			auto_trade_enabled = EXCLUDED.auto_trade_enabled,
			max_daily_trades = EXCLUDED.max_daily_trades,
			max_daily_loss = EXCLUDED.max_daily_loss,
			max_position_size = EXCLUDED.max_position_size,
			trading_hours_start = EXCLUDED.trading_hours_start,
			trading_hours_end = EXCLUDED.trading_hours_end,
			updated_at = EXCLUDED.updated_at
	`
	s.UpdatedAt = time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, query,
		s.UserID, s.AutoTradeEnabled, s.MaxDailyTrades, s.MaxDailyLoss,
		s.MaxPositionSize, s.TradingHoursStart, s.TradingHoursEnd, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trading settings: %w", err)
	}
	return nil
}

// GetTradingSettings retrieves one user's settings
func (db *DB) GetTradingSettings(ctx context.Context, userID string) (*models.TradingSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM trading_settings WHERE user_id = $1`
	s, err := scanSettings(db.conn.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trading settings for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trading settings: %w", err)
	}
	return s, nil
}

// ListAutoTradeSettings returns the settings of every auto-trading user
func (db *DB) ListAutoTradeSettings(ctx context.Context) ([]*models.TradingSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM trading_settings WHERE auto_trade_enabled ORDER BY user_id`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading settings: %w", err)
	}
	defer rows.Close()

	var out []*models.TradingSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading settings: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettings(row rowScanner) (*models.TradingSettings, error) {
	var s models.TradingSettings
	err := row.Scan(
		&s.UserID, &s.AutoTradeEnabled, &s.MaxDailyTrades, &s.MaxDailyLoss,
		&s.MaxPositionSize, &s.TradingHoursStart, &s.TradingHoursEnd, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
