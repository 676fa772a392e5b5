package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/report"
	"github.com/trogers1052/signal-trader/internal/risk"
)

// PassTrailingStop is the pass name reported in summaries
const PassTrailingStop = "trailing-stop-update"

// Reasons recorded for positions left open
const (
	ReasonUpdated = "updated"
)

// ErrMissingCollaborator aborts a pass before any position is processed
var ErrMissingCollaborator = errors.New("missing required collaborator")

// Store reads open positions and saves their marks
type Store interface {
	GetOpenPositions(ctx context.Context) ([]*models.Position, error)
	// UpdatePositionMarks saves price, P&L and trailing stop of an open position
	UpdatePositionMarks(ctx context.Context, p *models.Position) error
}

// Closer closes positions with an offsetting order
type Closer interface {
	ClosePosition(ctx context.Context, pos *models.Position, reason string, price decimal.Decimal) (*models.Order, error)
}

// Config bounds a pass
type Config struct {
	Workers     int
	UnitTimeout time.Duration
}

// Monitor runs the trailing-stop-update pass
type Monitor struct {
	store  Store
	market marketdata.Provider
	closer Closer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Monitor
type Option func(*Monitor)

// WithLogger sets the monitor's logger
func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.logger = l } }

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// New creates a monitor
func New(store Store, market marketdata.Provider, closer Closer, cfg Config, opts ...Option) *Monitor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 30 * time.Second
	}
	m := &Monitor{
		store:  store,
		market: market,
		closer: closer,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run processes every open position concurrently
func (m *Monitor) Run(ctx context.Context) (*report.Summary, error) {
	if m.store == nil || m.market == nil || m.closer == nil {
		return nil, ErrMissingCollaborator
	}

	rec := report.NewRecorder(PassTrailingStop, m.now())
	positions, err := m.store.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open positions: %w", err)
	}

	g := &errgroup.Group{}
	g.SetLimit(m.cfg.Workers)
	for _, pos := range positions {
		pos := pos
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(ctx, m.cfg.UnitTimeout)
			defer cancel()
			rec.Add(m.process(uctx, pos))
			return nil
		})
	}
	_ = g.Wait()

	summary := rec.Finish(m.now())
	m.logger.Info("Trailing stop update complete",
		zap.Int("positions", len(positions)),
		zap.Int("closed", summary.Executed),
		zap.Int("updated", summary.Skipped),
		zap.Int("errored", summary.Errored))
	return summary, nil
}

// process marks one position. Closed positions are reported as executed and
// positions left open as skipped with reason "updated".
func (m *Monitor) process(ctx context.Context, pos *models.Position) report.Outcome {
	out := report.Outcome{UserID: pos.UserID, Symbol: pos.Symbol, PositionID: pos.ID}
	log := m.logger.With(zap.String("position_id", pos.ID), zap.String("symbol", pos.Symbol))

	quote, err := m.market.GetQuote(ctx, pos.Symbol)
	if err != nil {
		log.Error("Failed to get quote", zap.Error(err))
		out.Status, out.Reason = report.StatusErrored, err.Error()
		return out
	}
	if !risk.ValidPrice(quote) {
		out.Status, out.Reason = report.StatusSkipped, risk.ReasonInvalidPrice
		return out
	}
	price := decimal.NewFromFloat(quote)
	ev := Evaluate(pos, price)

	if ev.Trigger != "" {
		if _, err := m.closer.ClosePosition(ctx, pos, ev.Trigger, price); err != nil {
			if errors.Is(err, execution.ErrPositionClosed) {
				out.Status, out.Reason = report.StatusSkipped, err.Error()
				return out
			}
			log.Error("Failed to close position", zap.String("reason", ev.Trigger), zap.Error(err))
			out.Status, out.Reason = report.StatusErrored, err.Error()
			return out
		}
		log.Info("Position closed", zap.String("reason", ev.Trigger), zap.String("price", price.String()))
		out.Status, out.Reason = report.StatusExecuted, ev.Trigger
		return out
	}

	updated := *pos
	updated.CurrentPrice = decimal.NewNullDecimal(ev.CurrentPrice)
	updated.UnrealizedPnl = decimal.NewNullDecimal(ev.UnrealizedPnl)
	updated.TrailingStopPrice = ev.TrailingStopPrice
	updated.UpdatedAt = m.now().UTC()
	if err := m.store.UpdatePositionMarks(ctx, &updated); err != nil {
		log.Error("Failed to update position", zap.Error(err))
		out.Status, out.Reason = report.StatusErrored, err.Error()
		return out
	}
	*pos = updated
	out.Status, out.Reason = report.StatusSkipped, ReasonUpdated
	return out
}
