package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/signal-trader/internal/models"
)

// ErrInvalidTransition is returned for order status changes the lifecycle forbids
var ErrInvalidTransition = errors.New("invalid order status transition")

const orderColumns = `id, user_id, signal_id, position_id, symbol, side, quantity, limit_price,
	status, strategy, trailing_stop_percent, stop_loss_price, take_profit_price,
	broker_order_id, created_at, updated_at`

// CountOrdersSince counts a user's orders created at or after since
func (db *DB) CountOrdersSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// GetFilledOrdersSince returns a user's filled orders created at or after since
func (db *DB) GetFilledOrdersSince(ctx context.Context, userID string, since time.Time) ([]*models.Order, error) {
	return db.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND status = 'filled' AND created_at >= $2
		ORDER BY created_at
	`, userID, since)
}

// GetOrdersByUser returns a user's most recent orders
func (db *DB) GetOrdersByUser(ctx context.Context, userID string, limit int) ([]*models.Order, error) {
	return db.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

// GetOrderByBrokerID looks an order up by the broker's id
func (db *DB) GetOrderByBrokerID(ctx context.Context, brokerOrderID string) (*models.Order, error) {
	o, err := scanOrder(db.conn.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE broker_order_id = $1`, brokerOrderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order with broker id %s: %w", brokerOrderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// UpdateOrderStatusByBrokerID moves an order to status. Repeating the current
// status is a no-op and reports changed false.
func (db *DB) UpdateOrderStatusByBrokerID(ctx context.Context, brokerOrderID, status string) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE broker_order_id = $1 FOR UPDATE`, brokerOrderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("order with broker id %s: %w", brokerOrderID, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock order: %w", err)
	}
	if current == status {
		return false, nil
	}
	if !models.CanTransition(current, status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE broker_order_id = $1`,
		brokerOrderID, status, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

func (db *DB) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var signalID, positionID, brokerID sql.NullString
	err := row.Scan(
		&o.ID, &o.UserID, &signalID, &positionID, &o.Symbol, &o.Side, &o.Quantity, &o.LimitPrice,
		&o.Status, &o.Strategy, &o.TrailingStopPercent, &o.StopLossPrice, &o.TakeProfitPrice,
		&brokerID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.SignalID = stringPtr(signalID)
	o.PositionID = stringPtr(positionID)
	o.BrokerOrderID = brokerID.String
	return &o, nil
}
