// Package jobs runs the named passes for the CLI, the HTTP job endpoints and
// the serve scheduler, holding the pass lock while each one runs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/cache"
	"github.com/trogers1052/signal-trader/internal/monitor"
	"github.com/trogers1052/signal-trader/internal/report"
	"github.com/trogers1052/signal-trader/internal/scanner"
)

// ErrUnknownPass is returned for a pass name no runner handles
var ErrUnknownPass = errors.New("unknown pass")

// Passes lists the pass names in scheduling order
var Passes = []string{scanner.PassSignalScan, scanner.PassRiskCheck, monitor.PassTrailingStop}

// SignalScanner runs the signal-scan and risk-check passes
type SignalScanner interface {
	RunSignalScan(ctx context.Context) (*report.Summary, error)
	RunRiskCheck(ctx context.Context) (*scanner.RiskReport, error)
}

// PositionMonitor runs the trailing-stop-update pass
type PositionMonitor interface {
	Run(ctx context.Context) (*report.Summary, error)
}

// Locker hands out a cross-process lock per pass
type Locker interface {
	Acquire(ctx context.Context, pass string) (func(context.Context) error, error)
}

// Runner dispatches passes by name
type Runner struct {
	scanner SignalScanner
	monitor PositionMonitor
	lock    Locker
	logger  *zap.Logger
}

// NewRunner creates a runner. A nil lock runs passes unlocked.
func NewRunner(s SignalScanner, m PositionMonitor, lock Locker, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{scanner: s, monitor: m, lock: lock, logger: logger}
}

// Run executes pass once. The result is a *report.Summary, or a
// *scanner.RiskReport for the risk check.
func (r *Runner) Run(ctx context.Context, pass string) (any, error) {
	run, err := r.lookup(pass)
	if err != nil {
		return nil, err
	}

	if r.lock != nil {
		release, err := r.lock.Acquire(ctx, pass)
		if err != nil {
			return nil, err
		}
		defer func() {
			// ctx may already be cancelled; the lock must still go
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(rctx); err != nil {
				r.logger.Warn("Failed to release pass lock", zap.String("pass", pass), zap.Error(err))
			}
		}()
	}

	result, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", pass, err)
	}
	if sum := summaryOf(result); sum != nil {
		r.logger.Info("Pass finished",
			zap.String("pass", pass),
			zap.Int("executed", sum.Executed),
			zap.Int("skipped", sum.Skipped),
			zap.Int("errored", sum.Errored),
			zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)))
	}
	return result, nil
}

func (r *Runner) lookup(pass string) (func(context.Context) (any, error), error) {
	switch pass {
	case scanner.PassSignalScan:
		if r.scanner != nil {
			return func(ctx context.Context) (any, error) { return r.scanner.RunSignalScan(ctx) }, nil
		}
	case scanner.PassRiskCheck:
		if r.scanner != nil {
			return func(ctx context.Context) (any, error) { return r.scanner.RunRiskCheck(ctx) }, nil
		}
	case monitor.PassTrailingStop:
		if r.monitor != nil {
			return func(ctx context.Context) (any, error) { return r.monitor.Run(ctx) }, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPass, pass)
}

// Schedule runs pass every interval until ctx is done. Failures are logged.
func (r *Runner) Schedule(ctx context.Context, pass string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("Scheduling pass", zap.String("pass", pass), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx, pass); err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, cache.ErrLockHeld) {
					r.logger.Debug("Pass already running elsewhere", zap.String("pass", pass))
					continue
				}
				r.logger.Error("Scheduled pass failed", zap.String("pass", pass), zap.Error(err))
			}
		}
	}
}

func summaryOf(result any) *report.Summary {
	switch v := result.(type) {
	case *report.Summary:
		return v
	case *scanner.RiskReport:
		return v.Summary
	}
	return nil
}
