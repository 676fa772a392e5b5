// Package broker defines the order-routing collaborator and an in-process
// paper implementation.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/trogers1052/signal-trader/internal/models"
)

// ErrOrderNotFound is returned when cancelling an unknown order
var ErrOrderNotFound = errors.New("broker order not found")

// Broker routes orders to a venue
type Broker interface {
	// SubmitOrder places the order and returns the venue's order id
	SubmitOrder(ctx context.Context, o *models.Order) (string, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	// ClosePosition places the offsetting order for p and returns its venue id
	ClosePosition(ctx context.Context, p *models.Position) (string, error)
}

// PaperOrder is an order accepted by the paper broker
type PaperOrder struct {
	BrokerOrderID string
	Symbol        string
	Side          string
	Quantity      string
	Cancelled     bool
}

// Paper accepts every order in memory. RejectFn, when set, can refuse orders.
type Paper struct {
	RejectFn func(o *models.Order) error

	mu     sync.Mutex
	orders map[string]*PaperOrder
	closed map[string]string // position id -> broker order id
}

// NewPaper creates an empty paper broker
func NewPaper() *Paper {
	return &Paper{
		orders: make(map[string]*PaperOrder),
		closed: make(map[string]string),
	}
}

func (p *Paper) SubmitOrder(ctx context.Context, o *models.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.RejectFn != nil {
		if err := p.RejectFn(o); err != nil {
			return "", fmt.Errorf("order rejected: %w", err)
		}
	}

	id := "paper-" + uuid.NewString()
	p.mu.Lock()
	p.orders[id] = &PaperOrder{
		BrokerOrderID: id,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Quantity:      o.Quantity.String(),
	}
	p.mu.Unlock()
	return id, nil
}

func (p *Paper) CancelOrder(ctx context.Context, brokerOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[brokerOrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, brokerOrderID)
	}
	o.Cancelled = true
	return nil
}

// ClosePosition is idempotent per position id
func (p *Paper) ClosePosition(ctx context.Context, pos *models.Position) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.closed[pos.ID]; ok {
		return id, nil
	}

	side := models.SideSell
	if !pos.IsLong() {
		side = models.SideBuy
	}
	id := "paper-" + uuid.NewString()
	p.orders[id] = &PaperOrder{
		BrokerOrderID: id,
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      pos.Quantity.Abs().String(),
	}
	p.closed[pos.ID] = id
	return id, nil
}

// Orders returns a snapshot of accepted orders
func (p *Paper) Orders() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PaperOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, *o)
	}
	return out
}
