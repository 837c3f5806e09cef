// Package events publishes order domain events.
package events

import (
	"context"
	"time"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

const (
	OrderCreatedTopic       = "order.created"
	OrderStatusChangedTopic = "order.status_changed"
)

type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PreviousState string    `json:"previous_status,omitempty"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	Total         float64   `json:"total"`
	Currency      string    `json:"currency"`
	EventTime     time.Time `json:"event_time"`
}

// NewOrderEvent snapshots the order for publication.
func NewOrderEvent(o *models.Order, previous string) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.String(),
		Status:        o.Status,
		PreviousState: previous,
		PaymentMethod: o.Payment.Method,
		PaymentStatus: o.Payment.Status,
		Total:         o.Pricing.Total,
		Currency:      o.Currency,
	}
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event OrderEvent) error
	Close() error
}

// NoopPublisher drops every event; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
