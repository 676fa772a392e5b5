// Package storetest provides an in-memory store satisfying the scanner,
// execution and monitor store contracts, for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/models"
)

// ErrNotFound is returned for unknown ids
var ErrNotFound = errors.New("not found")

// Memory is a goroutine-safe store. Set a method name in Fail to make that
// method return the error.
type Memory struct {
	mu sync.Mutex

	Settings   map[string]*models.TradingSettings
	Watchlist  []*models.WatchlistItem
	Rules      []*models.SignalRule
	Signals    map[string]*models.Signal
	Orders     map[string]*models.Order
	Positions  map[string]*models.Position
	Indicators []*models.TechnicalIndicator
	Fail       map[string]error

	claims map[string]*memTx
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		Settings:  make(map[string]*models.TradingSettings),
		Signals:   make(map[string]*models.Signal),
		Orders:    make(map[string]*models.Order),
		Positions: make(map[string]*models.Position),
		Fail:      make(map[string]error),
		claims:    make(map[string]*memTx),
	}
}

func (m *Memory) fail(method string) error {
	return m.Fail[method]
}

// AddOrder stores an order directly, bypassing execution
func (m *Memory) AddOrder(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	m.Orders[o.ID] = &c
}

// AddPosition stores a position directly
func (m *Memory) AddPosition(p *models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.Positions[p.ID] = &c
}

// OrdersFor returns the orders of a signal
func (m *Memory) OrdersFor(signalID string) []*models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, o := range m.Orders {
		if o.SignalID != nil && *o.SignalID == signalID {
			c := *o
			out = append(out, &c)
		}
	}
	return out
}

// AllOrders returns every order sorted by creation time
func (m *Memory) AllOrders() []*models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Order, 0, len(m.Orders))
	for _, o := range m.Orders {
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Position returns a copy of a stored position
func (m *Memory) Position(id string) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	c := *p
	return &c, nil
}

// AllSignals returns copies of stored signals
func (m *Memory) AllSignals() []*models.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Signal, 0, len(m.Signals))
	for _, s := range m.Signals {
		c := *s
		out = append(out, &c)
	}
	return out
}

func (m *Memory) ListAutoTradeSettings(ctx context.Context) ([]*models.TradingSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListAutoTradeSettings"); err != nil {
		return nil, err
	}
	var out []*models.TradingSettings
	for _, s := range m.Settings {
		if s.AutoTradeEnabled {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) GetEnabledWatchlist(ctx context.Context, userID string) ([]*models.WatchlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetEnabledWatchlist"); err != nil {
		return nil, err
	}
	var out []*models.WatchlistItem
	for _, w := range m.Watchlist {
		if w.UserID == userID && w.Enabled {
			c := *w
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) GetEnabledRules(ctx context.Context, userID string) ([]*models.SignalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetEnabledRules"); err != nil {
		return nil, err
	}
	var out []*models.SignalRule
	for _, r := range m.Rules {
		if r.UserID == userID && r.Enabled {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) CountOrdersSince(ctx context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CountOrdersSince"); err != nil {
		return 0, err
	}
	n := 0
	for _, o := range m.Orders {
		if o.UserID == userID && !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetFilledOrdersSince(ctx context.Context, userID string, since time.Time) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetFilledOrdersSince"); err != nil {
		return nil, err
	}
	var out []*models.Order
	for _, o := range m.Orders {
		if o.UserID == userID && o.Status == models.OrderStatusFilled && !o.CreatedAt.Before(since) {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *Memory) InsertSignal(ctx context.Context, sig *models.Signal) (*models.Signal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertSignal"); err != nil {
		return nil, false, err
	}
	for _, s := range m.Signals {
		if s.RuleID == sig.RuleID && s.Symbol == sig.Symbol && s.SignalType == sig.SignalType && s.BarTime.Equal(sig.BarTime) {
			c := *s
			return &c, false, nil
		}
	}
	stored := *sig
	m.Signals[sig.ID] = &stored
	c := stored
	return &c, true, nil
}

func (m *Memory) SaveIndicators(ctx context.Context, rows []*models.TechnicalIndicator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SaveIndicators"); err != nil {
		return err
	}
	m.Indicators = append(m.Indicators, rows...)
	return nil
}

func (m *Memory) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetOpenPositions"); err != nil {
		return nil, err
	}
	var out []*models.Position
	for _, p := range m.Positions {
		if p.IsOpen {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdatePositionMarks(ctx context.Context, p *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdatePositionMarks"); err != nil {
		return err
	}
	stored, ok := m.Positions[p.ID]
	if !ok || !stored.IsOpen {
		return fmt.Errorf("open position %s: %w", p.ID, ErrNotFound)
	}
	stored.CurrentPrice = p.CurrentPrice
	stored.UnrealizedPnl = p.UnrealizedPnl
	stored.TrailingStopPrice = p.TrailingStopPrice
	stored.UpdatedAt = p.UpdatedAt
	return nil
}

// BeginTx starts a buffered transaction. Writes apply on Commit.
func (m *Memory) BeginTx(ctx context.Context) (execution.Tx, error) {
	if err := m.fail("BeginTx"); err != nil {
		return nil, err
	}
	return &memTx{m: m}, nil
}

type memTx struct {
	m         *Memory
	done      bool
	claimed   []string
	orders    []*models.Order
	positions []*models.Position
	closes    []*models.Position
}

// ClaimSignal holds the claim until commit or rollback, like a row lock
func (t *memTx) ClaimSignal(ctx context.Context, signalID string) (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.fail("ClaimSignal"); err != nil {
		return false, err
	}
	s, ok := t.m.Signals[signalID]
	if !ok || s.Executed {
		return false, nil
	}
	if holder, held := t.m.claims[signalID]; held && holder != t {
		return false, nil
	}
	t.m.claims[signalID] = t
	t.claimed = append(t.claimed, signalID)
	return true, nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := t.m.fail("CreateOrder"); err != nil {
		return err
	}
	c := *o
	t.orders = append(t.orders, &c)
	return nil
}

func (t *memTx) CreatePosition(ctx context.Context, p *models.Position) error {
	if err := t.m.fail("CreatePosition"); err != nil {
		return err
	}
	c := *p
	t.positions = append(t.positions, &c)
	return nil
}

func (t *memTx) ClosePosition(ctx context.Context, p *models.Position) (bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if err := t.m.fail("ClosePosition"); err != nil {
		return false, err
	}
	stored, ok := t.m.Positions[p.ID]
	if !ok || !stored.IsOpen {
		return false, nil
	}
	c := *p
	t.closes = append(t.closes, &c)
	return true, nil
}

func (t *memTx) Commit() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	defer t.release()
	if err := t.m.fail("Commit"); err != nil {
		return err
	}
	for _, id := range t.claimed {
		t.m.Signals[id].Executed = true
	}
	for _, o := range t.orders {
		t.m.Orders[o.ID] = o
	}
	for _, p := range t.positions {
		t.m.Positions[p.ID] = p
	}
	for _, p := range t.closes {
		t.m.Positions[p.ID] = p
	}
	return nil
}

func (t *memTx) Rollback() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

// release drops held claims. Callers hold m.mu.
func (t *memTx) release() {
	for _, id := range t.claimed {
		if t.m.claims[id] == t {
			delete(t.m.claims, id)
		}
	}
}
