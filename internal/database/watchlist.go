package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trogers1052/signal-trader/internal/models"
)

const watchlistColumns = `id, user_id, symbol, enabled, bb_period, bb_std_dev, vwap_enabled, created_at, updated_at`

// CreateWatchlistItem adds a symbol to a user's watchlist, updating the
// indicator parameters if it is already there
func (db *DB) CreateWatchlistItem(ctx context.Context, w *models.WatchlistItem) error {
	query := `
		INSERT INTO watchlist (` + watchlistColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			bb_period = EXCLUDED.bb_period,
			bb_std_dev = EXCLUDED.bb_std_dev,
			vwap_enabled = EXCLUDED.vwap_enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.UpdatedAt = now
	err := db.conn.QueryRowContext(ctx, query,
		w.ID, w.UserID, w.Symbol, w.Enabled, w.BBPeriod, w.BBStdDev, w.VWAPEnabled, now, now,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create watchlist item: %w", err)
	}
	return nil
}

// GetEnabledWatchlist returns a user's enabled watchlist items
func (db *DB) GetEnabledWatchlist(ctx context.Context, userID string) ([]*models.WatchlistItem, error) {
	return db.queryWatchlist(ctx, `SELECT `+watchlistColumns+` FROM watchlist WHERE user_id = $1 AND enabled ORDER BY symbol`, userID)
}

// GetWatchlistByUser returns every watchlist item of a user
func (db *DB) GetWatchlistByUser(ctx context.Context, userID string) ([]*models.WatchlistItem, error) {
	return db.queryWatchlist(ctx, `SELECT `+watchlistColumns+` FROM watchlist WHERE user_id = $1 ORDER BY symbol`, userID)
}

// DeleteWatchlistItem removes an item
func (db *DB) DeleteWatchlistItem(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM watchlist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watchlist item %s: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) queryWatchlist(ctx context.Context, query string, args ...any) ([]*models.WatchlistItem, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	defer rows.Close()

	var items []*models.WatchlistItem
	for rows.Next() {
		var w models.WatchlistItem
		err := rows.Scan(
			&w.ID, &w.UserID, &w.Symbol, &w.Enabled, &w.BBPeriod, &w.BBStdDev, &w.VWAPEnabled, &w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, &w)
	}
	return items, rows.Err()
}
