package storetest

import (
	"context"
	"sync"

	"github.com/trogers1052/signal-trader/internal/models"
)

// Events records published trade events
type Events struct {
	mu     sync.Mutex
	Err    error
	events []models.TradeEvent
}

func (e *Events) Publish(ctx context.Context, event models.TradeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.events = append(e.events, event)
	return nil
}

// Types returns the event types in publish order
func (e *Events) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.EventType
	}
	return out
}
