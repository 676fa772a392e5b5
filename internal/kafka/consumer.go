package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/models"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// MarketRepository stores what the market topic delivers
type MarketRepository interface {
	UpsertPriceBar(ctx context.Context, p *models.PriceBar) error
	// UpdateOrderStatusByBrokerID reports changed false for a repeated status
	UpdateOrderStatusByBrokerID(ctx context.Context, brokerOrderID, status string) (bool, error)
}

// QuoteSink receives the close of every ingested bar
type QuoteSink interface {
	SetQuote(ctx context.Context, symbol string, price float64) error
}

// ErrInvalidEvent is wrapped for events that can never be processed
var ErrInvalidEvent = errors.New("invalid market event")

// Consumer ingests bar and order-status events from the market topic
type Consumer struct {
	reader messageReader
	repo   MarketRepository
	quotes QuoteSink
	logger *zap.Logger
}

// NewConsumer creates a consumer group reader on the market topic
func NewConsumer(brokers []string, topic, groupID string, repo MarketRepository, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	return newConsumer(reader, repo, logger)
}

func newConsumer(reader messageReader, repo MarketRepository, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, repo: repo, logger: logger}
}

// WithQuoteSink forwards bar closes to sink, typically the quote cache
func (c *Consumer) WithQuoteSink(sink QuoteSink) *Consumer {
	c.quotes = sink
	return c
}

// Start consumes until ctx is cancelled. Bad messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting market consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Market consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Error reading message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error("Error processing message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.String("key", string(msg.Key)),
					zap.Error(err))
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.MarketEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal: %v", ErrInvalidEvent, err)
	}

	switch event.EventType {
	case models.EventBarClosed:
		return c.handleBar(ctx, event)
	case models.EventOrderStatus:
		return c.handleOrderStatus(ctx, event)
	default:
		c.logger.Debug("Ignoring event type", zap.String("event_type", event.EventType))
		return nil
	}
}

func (c *Consumer) handleBar(ctx context.Context, event models.MarketEvent) error {
	if event.Symbol == "" || event.Bar == nil {
		return fmt.Errorf("%w: bar event without symbol or bar", ErrInvalidEvent)
	}
	b := *event.Bar
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: non-positive or non-finite price for %s", ErrInvalidEvent, event.Symbol)
		}
	}
	if b.Volume < 0 || b.Timestamp.IsZero() {
		return fmt.Errorf("%w: bad volume or timestamp for %s", ErrInvalidEvent, event.Symbol)
	}

	if err := c.repo.UpsertPriceBar(ctx, models.NewPriceBar(event.Symbol, b)); err != nil {
		return fmt.Errorf("failed to save price bar: %w", err)
	}
	if c.quotes != nil {
		if err := c.quotes.SetQuote(ctx, event.Symbol, b.Close); err != nil {
			c.logger.Warn("Failed to cache quote", zap.String("symbol", event.Symbol), zap.Error(err))
		}
	}
	return nil
}

func (c *Consumer) handleOrderStatus(ctx context.Context, event models.MarketEvent) error {
	if event.BrokerOrderID == "" {
		return fmt.Errorf("%w: order status without broker order id", ErrInvalidEvent)
	}
	switch event.Status {
	case models.OrderStatusFilled, models.OrderStatusCancelled, models.OrderStatusRejected, models.OrderStatusSubmitted:
	default:
		return fmt.Errorf("%w: unknown order status %q", ErrInvalidEvent, event.Status)
	}

	changed, err := c.repo.UpdateOrderStatusByBrokerID(ctx, event.BrokerOrderID, event.Status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if !changed {
		c.logger.Debug("Order status unchanged", zap.String("broker_order_id", event.BrokerOrderID), zap.String("status", event.Status))
		return nil
	}
	c.logger.Info("Order status updated", zap.String("broker_order_id", event.BrokerOrderID), zap.String("status", event.Status))
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
