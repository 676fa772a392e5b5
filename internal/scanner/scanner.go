// Package scanner runs the signal-scan and risk-check passes over every
// auto-trading user on a bounded worker pool.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/indicators"
	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/report"
	"github.com/trogers1052/signal-trader/internal/risk"
	"github.com/trogers1052/signal-trader/internal/signals"
)

// Pass names
const (
	PassSignalScan = "signal-scan"
	PassRiskCheck  = "risk-check"
)

// Unit-level skip reasons not owned by the risk package
const (
	ReasonInvalidSymbol    = "invalid symbol"
	ReasonInsufficientBars = "insufficient bars"
	ReasonPeriodTooLong    = "bollinger period exceeds lookback"
	ReasonNoSignal         = "no signal"
	ReasonAlreadyExecuted  = "signal already executed"
)

// ErrMissingCollaborator aborts a pass before any unit runs
var ErrMissingCollaborator = errors.New("missing required collaborator")

// Store is the rule/settings and signal store the scan reads and writes
type Store interface {
	ListAutoTradeSettings(ctx context.Context) ([]*models.TradingSettings, error)
	GetEnabledWatchlist(ctx context.Context, userID string) ([]*models.WatchlistItem, error)
	GetEnabledRules(ctx context.Context, userID string) ([]*models.SignalRule, error)
	CountOrdersSince(ctx context.Context, userID string, since time.Time) (int, error)
	GetFilledOrdersSince(ctx context.Context, userID string, since time.Time) ([]*models.Order, error)
	// InsertSignal stores sig unless (rule, symbol, type, bar time) exists, in
	// which case the existing row is returned and created is false
	InsertSignal(ctx context.Context, sig *models.Signal) (stored *models.Signal, created bool, err error)
	SaveIndicators(ctx context.Context, rows []*models.TechnicalIndicator) error
}

// Executor executes approved signals
type Executor interface {
	Execute(ctx context.Context, req execution.Request) (*execution.Result, error)
}

// Config bounds a pass
type Config struct {
	Workers      int
	UnitTimeout  time.Duration
	AccountValue decimal.Decimal
	Timeframe    string
	// Lookback is the bar window the market provider returns. Zero disables
	// the period check.
	Lookback int
}

// Scanner wires the detection pipeline to its collaborators
type Scanner struct {
	store  Store
	market marketdata.Provider
	exec   Executor
	gate   *risk.Gate
	events execution.Publisher
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the scanner's logger
func WithLogger(l *zap.Logger) Option { return func(s *Scanner) { s.logger = l } }

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(s *Scanner) { s.now = now } }

// WithPublisher emits SIGNAL_DETECTED for newly stored signals
func WithPublisher(p execution.Publisher) Option { return func(s *Scanner) { s.events = p } }

// New creates a scanner. Nil collaborators are reported when a pass runs.
func New(store Store, market marketdata.Provider, exec Executor, gate *risk.Gate, cfg Config, opts ...Option) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 30 * time.Second
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = models.DefaultTimeframe
	}
	s := &Scanner{
		store:  store,
		market: market,
		exec:   exec,
		gate:   gate,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// unit is one (user, watchlist item) of a signal scan
type unit struct {
	settings *models.TradingSettings
	item     *models.WatchlistItem
	rules    []*models.SignalRule
	session  *risk.Session
}

// RunSignalScan evaluates every user's session, then scans each approved
// user's watchlist concurrently. Unit failures are recorded, never returned.
func (s *Scanner) RunSignalScan(ctx context.Context) (*report.Summary, error) {
	if s.store == nil || s.market == nil || s.exec == nil || s.gate == nil {
		return nil, ErrMissingCollaborator
	}

	now := s.now()
	rec := report.NewRecorder(PassSignalScan, now)

	users, err := s.store.ListAutoTradeSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading settings: %w", err)
	}

	var (
		mu    sync.Mutex
		units []unit
	)
	g := s.group()
	for _, settings := range users {
		settings := settings
		g.Go(func() error {
			prepared := s.prepareUser(ctx, settings, now, rec)
			mu.Lock()
			units = append(units, prepared...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	g = s.group()
	for _, u := range units {
		u := u
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
			defer cancel()
			s.scanUnit(uctx, u, now, rec)
			return nil
		})
	}
	_ = g.Wait()

	summary := rec.Finish(s.now())
	s.logger.Info("Signal scan complete",
		zap.Int("users", len(users)),
		zap.Int("units", len(units)),
		zap.Int("executed", summary.Executed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errored", summary.Errored))
	return summary, nil
}

// group returns an errgroup bounded by the worker count. Workers never return
// errors so one failing unit cannot cancel its siblings.
func (s *Scanner) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(s.cfg.Workers)
	return g
}

func (s *Scanner) prepareUser(ctx context.Context, settings *models.TradingSettings, now time.Time, rec *report.Recorder) []unit {
	log := s.logger.With(zap.String("user_id", settings.UserID))

	dec, err := s.evaluate(ctx, settings, now)
	if err != nil {
		log.Error("Failed to load session state", zap.Error(err))
		rec.Add(report.Outcome{Status: report.StatusErrored, UserID: settings.UserID, Reason: err.Error()})
		return nil
	}
	if !dec.Allowed {
		log.Info("User skipped by risk gate", zap.String("reason", dec.Reason))
		rec.Add(report.Outcome{Status: report.StatusSkipped, UserID: settings.UserID, Reason: dec.Reason})
		return nil
	}

	items, err := s.store.GetEnabledWatchlist(ctx, settings.UserID)
	if err != nil {
		log.Error("Failed to load watchlist", zap.Error(err))
		rec.Add(report.Outcome{Status: report.StatusErrored, UserID: settings.UserID, Reason: err.Error()})
		return nil
	}
	rules, err := s.store.GetEnabledRules(ctx, settings.UserID)
	if err != nil {
		log.Error("Failed to load signal rules", zap.Error(err))
		rec.Add(report.Outcome{Status: report.StatusErrored, UserID: settings.UserID, Reason: err.Error()})
		return nil
	}

	session := risk.NewSession(dec)
	units := make([]unit, 0, len(items))
	for _, item := range items {
		units = append(units, unit{settings: settings, item: item, rules: rules, session: session})
	}
	return units
}

func (s *Scanner) evaluate(ctx context.Context, settings *models.TradingSettings, now time.Time) (risk.Decision, error) {
	since := s.gate.StartOfDay(now)
	count, err := s.store.CountOrdersSince(ctx, settings.UserID, since)
	if err != nil {
		return risk.Decision{}, fmt.Errorf("failed to count orders: %w", err)
	}
	filled, err := s.store.GetFilledOrdersSince(ctx, settings.UserID, since)
	if err != nil {
		return risk.Decision{}, fmt.Errorf("failed to get filled orders: %w", err)
	}
	return s.gate.Evaluate(settings, risk.SessionState{OrdersToday: count, FilledOrdersToday: filled}, now), nil
}

func (s *Scanner) scanUnit(ctx context.Context, u unit, now time.Time, rec *report.Recorder) {
	item := u.item
	base := report.Outcome{UserID: item.UserID, Symbol: item.Symbol}
	log := s.logger.With(zap.String("user_id", item.UserID), zap.String("symbol", item.Symbol))

	skip := func(reason string) {
		o := base
		o.Status, o.Reason = report.StatusSkipped, reason
		rec.Add(o)
	}

	if !models.ValidSymbol(item.Symbol) {
		skip(ReasonInvalidSymbol)
		return
	}
	set, err := indicators.FromWatchlist(item)
	if err != nil {
		skip(err.Error())
		return
	}
	if err := set.FitsWindow(s.cfg.Lookback); err != nil {
		log.Warn("Watchlist item can never be evaluated", zap.Error(err))
		skip(ReasonPeriodTooLong)
		return
	}

	bars, err := s.market.GetBars(ctx, item.Symbol)
	if err != nil {
		log.Error("Failed to get bars", zap.Error(err))
		o := base
		o.Status, o.Reason = report.StatusErrored, err.Error()
		rec.Add(o)
		return
	}
	snap, ok := set.Compute(bars)
	if !ok {
		skip(ReasonInsufficientBars)
		return
	}
	if !validSnapshot(snap) {
		skip(risk.ReasonInvalidPrice)
		return
	}
	s.saveSnapshot(ctx, item.Symbol, snap, log)

	matches := signals.MatchRules(item.UserID, signals.Detect(signals.InputFromSnapshot(snap)), u.rules)
	if len(matches) == 0 {
		skip(ReasonNoSignal)
		return
	}
	for _, m := range matches {
		rec.Add(s.handleMatch(ctx, u, snap, m, now, log))
	}
}

func (s *Scanner) handleMatch(ctx context.Context, u unit, snap indicators.Snapshot, m signals.Match, now time.Time, log *zap.Logger) report.Outcome {
	out := report.Outcome{UserID: u.item.UserID, Symbol: u.item.Symbol, SignalType: string(m.SignalType)}
	log = log.With(zap.String("signal_type", string(m.SignalType)), zap.String("rule_id", m.Rule.ID))

	stored, created, err := s.store.InsertSignal(ctx, newSignal(u.item, m, snap, now))
	if err != nil {
		log.Error("Failed to insert signal", zap.Error(err))
		out.Status, out.Reason = report.StatusErrored, err.Error()
		return out
	}
	out.SignalID = stored.ID
	if created {
		s.publish(ctx, models.TradeEvent{EventType: models.EventSignalDetected, UserID: stored.UserID, Symbol: stored.Symbol, Signal: stored, Timestamp: now}, log)
	}
	if stored.Executed {
		out.Status, out.Reason = report.StatusSkipped, ReasonAlreadyExecuted
		return out
	}

	qty, reason := risk.Size(risk.SizingInput{
		MaxPositionSize: u.settings.MaxPositionSize,
		Rule:            m.Rule,
		AccountValue:    s.cfg.AccountValue,
		Price:           stored.PriceAtSignal,
	})
	if reason != "" {
		out.Status, out.Reason = report.StatusSkipped, reason
		return out
	}

	if !u.session.Reserve() {
		out.Status, out.Reason = report.StatusSkipped, risk.ReasonMaxDailyTrades
		return out
	}
	res, err := s.exec.Execute(ctx, execution.Request{Signal: stored, Rule: m.Rule, Quantity: qty})
	switch {
	case errors.Is(err, execution.ErrAlreadyExecuted):
		u.session.Release()
		out.Status, out.Reason = report.StatusSkipped, ReasonAlreadyExecuted
		return out
	case err != nil:
		u.session.Release()
		log.Error("Failed to execute signal", zap.String("signal_id", stored.ID), zap.Error(err))
		out.Status, out.Reason = report.StatusErrored, err.Error()
		return out
	}

	log.Info("Signal executed",
		zap.String("signal_id", stored.ID),
		zap.String("order_id", res.Order.ID),
		zap.String("position_id", res.Position.ID),
		zap.String("side", res.Order.Side),
		zap.Int64("quantity", qty))
	out.Status = report.StatusExecuted
	out.PositionID = res.Position.ID
	return out
}

func newSignal(item *models.WatchlistItem, m signals.Match, snap indicators.Snapshot, now time.Time) *models.Signal {
	sig := &models.Signal{
		ID:            uuid.NewString(),
		UserID:        item.UserID,
		RuleID:        m.Rule.ID,
		Symbol:        item.Symbol,
		SignalType:    m.SignalType,
		PriceAtSignal: decimal.NewFromFloat(snap.Current),
		BBUpper:       decimal.NewFromFloat(snap.Bands.Upper),
		BBLower:       decimal.NewFromFloat(snap.Bands.Lower),
		BBMiddle:      decimal.NewFromFloat(snap.Bands.Middle),
		Volume:        snap.Last.Volume,
		BarTime:       snap.Last.Timestamp,
		TriggeredAt:   now,
	}
	if snap.VWAPEnabled {
		sig.VWAP = decimal.NewNullDecimal(decimal.NewFromFloat(snap.VWAP))
	}
	return sig
}

// saveSnapshot persists the computed indicators. Failures only log.
func (s *Scanner) saveSnapshot(ctx context.Context, symbol string, snap indicators.Snapshot, log *zap.Logger) {
	var vwap *float64
	if snap.VWAPEnabled {
		vwap = &snap.VWAP
	}
	rows := models.IndicatorRows(symbol, snap.Last.Timestamp, s.cfg.Timeframe, snap.Bands.Upper, snap.Bands.Middle, snap.Bands.Lower, vwap)
	if err := s.store.SaveIndicators(ctx, rows); err != nil {
		log.Warn("Failed to save indicator snapshot", zap.Error(err))
	}
}

func (s *Scanner) publish(ctx context.Context, event models.TradeEvent, log *zap.Logger) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn("Failed to publish event", zap.String("event_type", event.EventType), zap.Error(err))
	}
}

func validSnapshot(snap indicators.Snapshot) bool {
	if !risk.ValidPrice(snap.Current) {
		return false
	}
	for _, v := range []float64{snap.Bands.Upper, snap.Bands.Middle, snap.Bands.Lower, snap.VWAP, snap.Current, snap.Previous} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
