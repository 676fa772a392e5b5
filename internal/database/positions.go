package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/signal-trader/internal/models"
)

const positionColumns = `id, user_id, order_id, symbol, quantity, avg_cost, current_price, unrealized_pnl,
	trailing_stop_percent, trailing_stop_price, stop_loss_price, take_profit_price,
	is_open, opened_at, closed_at, close_reason, updated_at`

// GetOpenPositions returns every open position
func (db *DB) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	return db.queryPositions(ctx, `SELECT `+positionColumns+` FROM positions WHERE is_open ORDER BY opened_at`)
}

// GetPositionsByUser returns a user's positions, optionally only open ones
func (db *DB) GetPositionsByUser(ctx context.Context, userID string, openOnly bool) ([]*models.Position, error) {
	return db.queryPositions(ctx, `
		SELECT `+positionColumns+` FROM positions
		WHERE user_id = $1 AND (is_open OR NOT $2)
		ORDER BY opened_at DESC
	`, userID, openOnly)
}

// GetPositionByID retrieves a position
func (db *DB) GetPositionByID(ctx context.Context, id string) (*models.Position, error) {
	p, err := scanPosition(db.conn.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return p, nil
}

// UpdatePositionMarks saves price, P&L and trailing stop of an open position
func (db *DB) UpdatePositionMarks(ctx context.Context, p *models.Position) error {
	query := `
		UPDATE positions
		SET current_price = $2, unrealized_pnl = $3, trailing_stop_price = $4, updated_at = $5
		WHERE id = $1 AND is_open
	`
	result, err := db.conn.ExecContext(ctx, query,
		p.ID, p.CurrentPrice, p.UnrealizedPnl, p.TrailingStopPrice, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("open position %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

func (db *DB) queryPositions(ctx context.Context, query string, args ...any) ([]*models.Position, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	var out []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var closedAt sql.NullTime
	var closeReason sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.Symbol, &p.Quantity, &p.AvgCost, &p.CurrentPrice, &p.UnrealizedPnl,
		&p.TrailingStopPercent, &p.TrailingStopPrice, &p.StopLossPrice, &p.TakeProfitPrice,
		&p.IsOpen, &p.OpenedAt, &closedAt, &closeReason, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ClosedAt = timePtr(closedAt)
	p.CloseReason = closeReason.String
	return &p, nil
}
