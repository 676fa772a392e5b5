package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/signal-trader/internal/models"
)

const signalColumns = `id, user_id, rule_id, symbol, signal_type, price_at_signal, bb_upper, bb_lower,
	bb_middle, vwap, volume, executed, bar_time, triggered_at`

// InsertSignal stores a detected signal. A signal for the same rule, symbol,
// type and bar already stored is returned instead, with created false.
func (db *DB) InsertSignal(ctx context.Context, sig *models.Signal) (*models.Signal, bool, error) {
	query := `
		INSERT INTO signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (rule_id, symbol, signal_type, bar_time) DO NOTHING
		RETURNING id
	`
	var id string
	err := db.conn.QueryRowContext(ctx, query,
		sig.ID, sig.UserID, sig.RuleID, sig.Symbol, string(sig.SignalType), sig.PriceAtSignal,
		sig.BBUpper, sig.BBLower, sig.BBMiddle, sig.VWAP, sig.Volume, sig.Executed, sig.BarTime, sig.TriggeredAt,
	).Scan(&id)
	if err == nil {
		stored := *sig
		return &stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert signal: %w", err)
	}

	existing, err := scanSignal(db.conn.QueryRowContext(ctx, `
		SELECT `+signalColumns+` FROM signals
		WHERE rule_id = $1 AND symbol = $2 AND signal_type = $3 AND bar_time = $4
	`, sig.RuleID, sig.Symbol, string(sig.SignalType), sig.BarTime))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get existing signal: %w", err)
	}
	return existing, false, nil
}

// GetSignalByID retrieves a signal
func (db *DB) GetSignalByID(ctx context.Context, id string) (*models.Signal, error) {
	sig, err := scanSignal(db.conn.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return sig, nil
}

// GetSignalsByUser returns a user's most recent signals
func (db *DB) GetSignalsByUser(ctx context.Context, userID string, limit int) ([]*models.Signal, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+signalColumns+` FROM signals
		WHERE user_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get signals: %w", err)
	}
	defer rows.Close()

	var out []*models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var s models.Signal
	var signalType string
	err := row.Scan(
		&s.ID, &s.UserID, &s.RuleID, &s.Symbol, &signalType, &s.PriceAtSignal, &s.BBUpper, &s.BBLower,
		&s.BBMiddle, &s.VWAP, &s.Volume, &s.Executed, &s.BarTime, &s.TriggeredAt,
	)
	if err != nil {
		return nil, err
	}
	s.SignalType = models.SignalType(signalType)
	return &s, nil
}
