// Package events defines the domain events exchanged between services and
// the publisher/consumer pair speaking to the message bus. Each routing key
// has exactly one payload type with a fixed schema and an explicit version
// tag, so producers and consumers cannot silently drift.
package events

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current version tag stamped on every payload.
const SchemaVersion = 1

// Routing keys for the four domain events.
const (
	OrderCreated     = "order.created"
	OrderCancelled   = "order.cancelled"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
)

// OrderItem is one line of an order as carried by order.created.
type OrderItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

// CancelledItem carries only what stock compensation needs.
type CancelledItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderCreatedEvent is published after an order's local transaction commits.
type OrderCreatedEvent struct {
	Version     int         `json:"version"`
	OrderID     int64       `json:"order_id"`
	UserID      int64       `json:"user_id"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	Items       []OrderItem `json:"items"`
	CreatedAt   string      `json:"created_at"`
}

// OrderCancelledEvent triggers the compensating stock increase.
type OrderCancelledEvent struct {
	Version   int             `json:"version"`
	OrderID   int64           `json:"order_id"`
	Status    string          `json:"status"`
	Items     []CancelledItem `json:"items"`
	UpdatedAt string          `json:"updated_at"`
}

// PaymentCompletedEvent feeds the reporting aggregates.
type PaymentCompletedEvent struct {
	Version         int     `json:"version"`
	PaymentID       int64   `json:"payment_id"`
	OrderID         int64   `json:"order_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
	ChangeAmount    float64 `json:"change_amount"`
	Status          string  `json:"status"`
	PaidAt          string  `json:"paid_at"`
	ItemsCount      int     `json:"items_count"`
}

// PaymentFailedEvent records a failed payment attempt.
type PaymentFailedEvent struct {
	Version         int     `json:"version"`
	PaymentID       int64   `json:"payment_id"`
	OrderID         int64   `json:"order_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
	Error           string  `json:"error"`
	PaidAt          string  `json:"paid_at"`
}

// Decode unmarshals data into the payload type registered for routingKey.
// Unknown routing keys are an error; consumers treat that as a poison
// message and drop it.
func Decode(routingKey string, data []byte) (any, error) {
	switch routingKey {
	case OrderCreated:
		var ev OrderCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		return &ev, nil
	case OrderCancelled:
		var ev OrderCancelledEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		return &ev, nil
	case PaymentCompleted:
		var ev PaymentCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		return &ev, nil
	case PaymentFailed:
		var ev PaymentFailedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", routingKey, err)
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown routing key %q", routingKey)
	}
}
