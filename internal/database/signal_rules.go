package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trogers1052/signal-trader/internal/models"
)

const ruleColumns = `id, user_id, signal_type, enabled, option_strategy, position_size_percent,
	max_position_value, trailing_stop_percent, stop_loss_percent, take_profit_percent,
	created_at, updated_at`

// CreateSignalRule validates and inserts a rule
func (db *DB) CreateSignalRule(ctx context.Context, r *models.SignalRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO signal_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := db.conn.ExecContext(ctx, query,
		r.ID, r.UserID, string(r.SignalType), r.Enabled, r.OptionStrategy, r.PositionSizePercent,
		r.MaxPositionValue, r.TrailingStopPercent, r.StopLossPercent, r.TakeProfitPercent,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal rule: %w", err)
	}
	return nil
}

// GetEnabledRules returns a user's enabled rules
func (db *DB) GetEnabledRules(ctx context.Context, userID string) ([]*models.SignalRule, error) {
	return db.queryRules(ctx, `SELECT `+ruleColumns+` FROM signal_rules WHERE user_id = $1 AND enabled ORDER BY created_at`, userID)
}

// GetRulesByUser returns every rule of a user
func (db *DB) GetRulesByUser(ctx context.Context, userID string) ([]*models.SignalRule, error) {
	return db.queryRules(ctx, `SELECT `+ruleColumns+` FROM signal_rules WHERE user_id = $1 ORDER BY created_at`, userID)
}

// SetRuleEnabled toggles a rule
func (db *DB) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE signal_rules SET enabled = $2, updated_at = $3 WHERE id = $1`, id, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update signal rule: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("signal rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) queryRules(ctx context.Context, query string, args ...any) ([]*models.SignalRule, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.SignalRule
	for rows.Next() {
		var r models.SignalRule
		var signalType string
		err := rows.Scan(
			&r.ID, &r.UserID, &signalType, &r.Enabled, &r.OptionStrategy, &r.PositionSizePercent,
			&r.MaxPositionValue, &r.TrailingStopPercent, &r.StopLossPercent, &r.TakeProfitPercent,
			&r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal rule: %w", err)
		}
		r.SignalType = models.SignalType(signalType)
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}
