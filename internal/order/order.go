// Package order implements order creation and cancellation: the producing
// side of the stock-adjustment saga. Each write commits locally first; the
// corresponding event is published only after the commit, as a separate,
// non-transactional action.
package order

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = errors.New("order not found")

// Order statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Order is one committed order with its items.
type Order struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	OrderNumber string    `json:"order_number"`
	TotalAmount float64   `json:"total_amount"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	Items       []Item    `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item is one order line.
type Item struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

// Summary holds the order counts the gateway aggregator consumes.
type Summary struct {
	TotalOrders     int     `json:"total_orders"`
	PendingOrders   int     `json:"pending_orders"`
	CompletedOrders int     `json:"completed_orders"`
	CancelledOrders int     `json:"cancelled_orders"`
	TodayOrders     int     `json:"today_orders"`
	TodayRevenue    float64 `json:"today_revenue"`
}

// Store persists orders. The order and its items are written in one local
// transaction.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	SetStatus(ctx context.Context, id int64, status string) (*Order, error)
	Summary(ctx context.Context) (*Summary, error)
}
