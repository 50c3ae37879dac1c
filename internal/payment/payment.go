// Package payment processes payments against committed orders and publishes
// the payment.completed / payment.failed events that drive reporting.
package payment

import (
	"context"
	"time"
)

// Payment statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Payment is one recorded payment attempt.
type Payment struct {
	ID              int64      `json:"id"`
	OrderID         int64      `json:"order_id"`
	PaymentMethodID int64      `json:"payment_method_id"`
	Amount          float64    `json:"amount"`
	OrderTotal      float64    `json:"order_total"`
	ChangeAmount    float64    `json:"change_amount"`
	Status          string     `json:"status"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Summary holds the payment counts the gateway aggregator consumes.
type Summary struct {
	TotalPayments     int     `json:"total_payments"`
	CompletedPayments int     `json:"completed_payments"`
	FailedPayments    int     `json:"failed_payments"`
	TodayPayments     int     `json:"today_payments"`
	TodayRevenue      float64 `json:"today_revenue"`
}

// Store persists payments.
type Store interface {
	// Insert writes the payment in one local transaction and fills ID
	// and CreatedAt.
	Insert(ctx context.Context, p *Payment) error

	// MethodCode resolves a payment method id to its code (cash, qris,
	// bank_transfer, credit_card). Unknown ids return an empty code.
	MethodCode(ctx context.Context, id int64) (string, error)

	Summary(ctx context.Context) (*Summary, error)
}
