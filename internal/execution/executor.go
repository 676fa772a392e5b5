package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/broker"
	"github.com/trogers1052/signal-trader/internal/models"
)

var (
	// ErrAlreadyExecuted means another worker claimed the signal first
	ErrAlreadyExecuted = errors.New("signal already executed")
	// ErrPositionClosed means the position was closed before this call
	ErrPositionClosed = errors.New("position already closed")
	// ErrInvalidRequest rejects malformed execution requests
	ErrInvalidRequest = errors.New("invalid execution request")
)

// Store opens the transaction an execution runs in
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is the unit of work. Rollback after Commit is a no-op.
type Tx interface {
	// ClaimSignal flips executed false→true and reports whether this call did it
	ClaimSignal(ctx context.Context, signalID string) (bool, error)
	CreateOrder(ctx context.Context, o *models.Order) error
	CreatePosition(ctx context.Context, p *models.Position) error
	// ClosePosition closes an open position and reports whether it was open
	ClosePosition(ctx context.Context, p *models.Position) (bool, error)
	Commit() error
	Rollback() error
}

// Publisher emits lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event models.TradeEvent) error
}

// Request is an approved signal ready for execution
type Request struct {
	Signal   *models.Signal
	Rule     *models.SignalRule
	Quantity int64
}

// Result holds the records written by Execute
type Result struct {
	Order    *models.Order
	Position *models.Position
}

// Executor places orders and writes their records atomically
type Executor struct {
	store  Store
	broker broker.Broker
	events Publisher
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithPublisher sends lifecycle events after each commit
func WithPublisher(p Publisher) Option {
	return func(e *Executor) { e.events = p }
}

// WithLogger sets the executor's logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an executor over a store and a broker
func NewExecutor(store Store, b broker.Broker, opts ...Option) *Executor {
	e := &Executor{
		store:  store,
		broker: b,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute claims the signal, submits the order, and writes the Order and
// Position in one transaction. A broker failure rolls the claim back so the
// signal stays consumable. A commit failure after the broker accepted the
// order cancels it at the broker.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Signal == nil || req.Rule == nil || req.Quantity <= 0 {
		return nil, ErrInvalidRequest
	}
	sig := req.Signal
	if !sig.PriceAtSignal.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive price", ErrInvalidRequest)
	}

	side := SideFor(sig.SignalType)
	stopLoss, takeProfit := ProtectivePrices(sig.PriceAtSignal, side, req.Rule.StopLossPercent, req.Rule.TakeProfitPercent)
	trailing := req.Rule.TrailingStopPercent
	if trailing.Valid {
		trailing = decimal.NewNullDecimal(ClampPercent(trailing.Decimal))
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claimed, err := tx.ClaimSignal(ctx, sig.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim signal: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyExecuted
	}

	now := e.now().UTC()
	signalID := sig.ID
	order := &models.Order{
		ID:                  uuid.NewString(),
		UserID:              sig.UserID,
		SignalID:            &signalID,
		Symbol:              sig.Symbol,
		Side:                side,
		Quantity:            decimal.NewFromInt(req.Quantity),
		LimitPrice:          sig.PriceAtSignal,
		Status:              models.OrderStatusPending,
		Strategy:            req.Rule.OptionStrategy,
		TrailingStopPercent: trailing,
		StopLossPrice:       stopLoss,
		TakeProfitPrice:     takeProfit,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	brokerID, err := e.broker.SubmitOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}
	order.BrokerOrderID = brokerID
	order.Status = models.OrderStatusSubmitted

	position := &models.Position{
		ID:                  uuid.NewString(),
		UserID:              sig.UserID,
		OrderID:             order.ID,
		Symbol:              sig.Symbol,
		Quantity:            SignedQuantity(req.Quantity, side),
		AvgCost:             sig.PriceAtSignal,
		TrailingStopPercent: trailing,
		StopLossPrice:       stopLoss,
		TakeProfitPrice:     takeProfit,
		IsOpen:              true,
		OpenedAt:            now,
		UpdatedAt:           now,
	}

	if err := e.persistOpen(ctx, tx, order, position); err != nil {
		e.compensate(order)
		return nil, err
	}
	sig.Executed = true

	e.publish(ctx, models.TradeEvent{EventType: models.EventOrderSubmitted, UserID: order.UserID, Symbol: order.Symbol, Signal: sig, Order: order, Timestamp: now})
	e.publish(ctx, models.TradeEvent{EventType: models.EventPositionOpened, UserID: position.UserID, Symbol: position.Symbol, Position: position, Timestamp: now})

	return &Result{Order: order, Position: position}, nil
}

func (e *Executor) persistOpen(ctx context.Context, tx Tx, order *models.Order, position *models.Position) error {
	if err := tx.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if err := tx.CreatePosition(ctx, position); err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution: %w", err)
	}
	return nil
}

// compensate cancels a broker order whose records could not be written. It
// runs detached from the request context so a timed-out unit still cancels.
func (e *Executor) compensate(order *models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.broker.CancelOrder(ctx, order.BrokerOrderID); err != nil {
		e.logger.Error("Failed to cancel orphaned broker order",
			zap.String("broker_order_id", order.BrokerOrderID),
			zap.String("signal_id", derefString(order.SignalID)),
			zap.Error(err))
		return
	}
	e.logger.Warn("Cancelled broker order after failed write",
		zap.String("broker_order_id", order.BrokerOrderID),
		zap.String("symbol", order.Symbol))
}

// ClosePosition submits the offsetting order at the broker, then closes the
// position and records the order in one transaction. price is the mark the
// position is closed at.
func (e *Executor) ClosePosition(ctx context.Context, pos *models.Position, reason string, price decimal.Decimal) (*models.Order, error) {
	if pos == nil || !pos.IsOpen {
		return nil, ErrPositionClosed
	}

	brokerID, err := e.broker.ClosePosition(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("failed to close position at broker: %w", err)
	}

	now := e.now().UTC()
	side := models.SideSell
	if !pos.IsLong() {
		side = models.SideBuy
	}
	positionID := pos.ID
	order := &models.Order{
		ID:            uuid.NewString(),
		UserID:        pos.UserID,
		PositionID:    &positionID,
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      pos.Quantity.Abs(),
		LimitPrice:    price,
		Status:        models.OrderStatusSubmitted,
		Strategy:      "close",
		BrokerOrderID: brokerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	closed := *pos
	closed.IsOpen = false
	closed.ClosedAt = &now
	closed.CloseReason = reason
	closed.CurrentPrice = decimal.NewNullDecimal(price)
	closed.UnrealizedPnl = decimal.NewNullDecimal(price.Sub(pos.AvgCost).Mul(pos.Quantity))
	closed.UpdatedAt = now

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := tx.ClosePosition(ctx, &closed)
	if err != nil {
		return nil, fmt.Errorf("failed to close position: %w", err)
	}
	if !ok {
		return nil, ErrPositionClosed
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create closing order: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit close: %w", err)
	}

	*pos = closed
	e.publish(ctx, models.TradeEvent{EventType: models.EventPositionClosed, UserID: pos.UserID, Symbol: pos.Symbol, Order: order, Position: pos, Reason: reason, Timestamp: now})
	return order, nil
}

func (e *Executor) publish(ctx context.Context, event models.TradeEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			zap.String("event_type", event.EventType),
			zap.String("user_id", event.UserID),
			zap.String("symbol", event.Symbol),
			zap.Error(err))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
