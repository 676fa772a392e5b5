package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/models"
)

// Tx is a Postgres unit of work for the execution engine
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts an execution transaction
func (db *DB) BeginTx(ctx context.Context) (execution.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// ClaimSignal atomically marks an unexecuted signal executed. The row lock
// taken here is held until commit, so concurrent claims serialize.
func (t *Tx) ClaimSignal(ctx context.Context, signalID string) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE signals SET executed = TRUE WHERE id = $1 AND executed = FALSE`, signalID)
	if err != nil {
		return false, fmt.Errorf("failed to claim signal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows == 1, nil
}

// CreateOrder inserts an order
func (t *Tx) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			id, user_id, signal_id, position_id, symbol, side, quantity, limit_price,
			status, strategy, trailing_stop_percent, stop_loss_price, take_profit_price,
			broker_order_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := t.tx.ExecContext(ctx, query,
		o.ID, o.UserID, nullStringPtr(o.SignalID), nullStringPtr(o.PositionID), o.Symbol, o.Side,
		o.Quantity, o.LimitPrice, o.Status, o.Strategy, o.TrailingStopPercent,
		o.StopLossPrice, o.TakeProfitPrice, nullString(o.BrokerOrderID), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// CreatePosition inserts an open position
func (t *Tx) CreatePosition(ctx context.Context, p *models.Position) error {
	query := `
		INSERT INTO positions (
			id, user_id, order_id, symbol, quantity, avg_cost, current_price, unrealized_pnl,
			trailing_stop_percent, trailing_stop_price, stop_loss_price, take_profit_price,
			is_open, opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, p.UserID, p.OrderID, p.Symbol, p.Quantity, p.AvgCost, p.CurrentPrice, p.UnrealizedPnl,
		p.TrailingStopPercent, p.TrailingStopPrice, p.StopLossPrice, p.TakeProfitPrice,
		p.IsOpen, p.OpenedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// ClosePosition closes p if it is still open and reports whether it was
func (t *Tx) ClosePosition(ctx context.Context, p *models.Position) (bool, error) {
	query := `
		UPDATE positions
		SET is_open = FALSE, closed_at = $2, close_reason = $3,
		    current_price = $4, unrealized_pnl = $5, updated_at = $6
		WHERE id = $1 AND is_open = TRUE
	`
	result, err := t.tx.ExecContext(ctx, query,
		p.ID, nullTime(p.ClosedAt), nullString(p.CloseReason), p.CurrentPrice, p.UnrealizedPnl, p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close position: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read close result: %w", err)
	}
	return rows == 1, nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback is a no-op after Commit
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
