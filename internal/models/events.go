package models

import "time"

// Outbound event types
const (
	EventSignalDetected = "SIGNAL_DETECTED"
	EventOrderSubmitted = "ORDER_SUBMITTED"
	EventPositionOpened = "POSITION_OPENED"
	EventPositionClosed = "POSITION_CLOSED"
)

// Inbound event types
const (
	EventBarClosed   = "BAR_CLOSED"
	EventOrderStatus = "ORDER_STATUS"
)

// TradeEvent is published to Kafka whenever the pipeline changes state
type TradeEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Signal    *Signal   `json:"signal,omitempty"`
	Order     *Order    `json:"order,omitempty"`
	Position  *Position `json:"position,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketEvent is consumed from the market/broker topic
type MarketEvent struct {
	EventType     string `json:"event_type"`
	Symbol        string `json:"symbol"`
	Bar           *Bar   `json:"bar,omitempty"`
	BrokerOrderID string `json:"broker_order_id,omitempty"`
	Status        string `json:"status,omitempty"`
}
