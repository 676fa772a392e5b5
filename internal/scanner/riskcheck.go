package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/report"
	"github.com/trogers1052/signal-trader/internal/risk"
)

// UserSession is one user's gate decision at check time
type UserSession struct {
	UserID string `json:"user_id"`
	risk.Decision
}

// RiskReport is the result of a risk-check pass. Blocked users are counted as
// skipped and store failures as errored in Summary.
type RiskReport struct {
	Summary  *report.Summary `json:"summary"`
	Sessions []UserSession   `json:"sessions"`
}

// RunRiskCheck evaluates the gate for every auto-trading user without
// touching market data or placing orders.
func (s *Scanner) RunRiskCheck(ctx context.Context) (*RiskReport, error) {
	if s.store == nil || s.gate == nil {
		return nil, ErrMissingCollaborator
	}

	now := s.now()
	rec := report.NewRecorder(PassRiskCheck, now)

	users, err := s.store.ListAutoTradeSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading settings: %w", err)
	}

	var (
		mu       sync.Mutex
		sessions []UserSession
	)
	g := s.group()
	for _, settings := range users {
		settings := settings
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
			defer cancel()

			dec, err := s.evaluate(uctx, settings, now)
			if err != nil {
				s.logger.Error("Failed to evaluate session", zap.String("user_id", settings.UserID), zap.Error(err))
				rec.Add(report.Outcome{Status: report.StatusErrored, UserID: settings.UserID, Reason: err.Error()})
				return nil
			}
			if !dec.Allowed {
				rec.Add(report.Outcome{Status: report.StatusSkipped, UserID: settings.UserID, Reason: dec.Reason})
			}
			mu.Lock()
			sessions = append(sessions, UserSession{UserID: settings.UserID, Decision: dec})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UserID < sessions[j].UserID })
	return &RiskReport{Summary: rec.Finish(s.now()), Sessions: sessions}, nil
}

// SessionFor evaluates a single user's session at now
func (s *Scanner) SessionFor(ctx context.Context, settings *models.TradingSettings, now time.Time) (risk.Decision, error) {
	if s.store == nil || s.gate == nil {
		return risk.Decision{}, ErrMissingCollaborator
	}
	return s.evaluate(ctx, settings, now)
}
