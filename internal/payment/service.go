package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/events"
)

// Publisher is the slice of the event publisher the service needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Service processes payments. The payment row commits locally first; the
// corresponding event publishes afterwards and is lost if the broker is
// down at that moment.
type Service struct {
	store  Store
	orders OrderLookup
	bus    Publisher
	logger *slog.Logger

	now func() time.Time
}

// NewService wires the payment service.
func NewService(store Store, orders OrderLookup, bus Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, orders: orders, bus: bus, logger: logger, now: time.Now}
}

// ProcessRequest is the inbound shape for payment processing.
type ProcessRequest struct {
	OrderID         int64   `json:"order_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
}

// Process validates the payment against the order, records it, and
// publishes payment.completed or payment.failed. A failed method execution
// is still a committed payment row with status failed, not a rollback.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*Payment, *domain.Error) {
	if req.OrderID == 0 || req.PaymentMethodID == 0 {
		return nil, domain.ErrClient("order_id and payment_method_id are required")
	}
	if req.Amount < 0 {
		return nil, domain.ErrClient("amount must not be negative")
	}

	info, err := s.orders.Order(ctx, req.OrderID)
	if err != nil {
		return nil, domain.ErrDependency("Order lookup failed").WithService("order").Wrap(err)
	}
	if info == nil {
		return nil, domain.ErrNotFound("Order not found")
	}

	if req.Amount < info.TotalAmount {
		return nil, domain.ErrClient("Payment amount is less than order total").
			WithDetails(map[string]float64{
				"order_total":    info.TotalAmount,
				"payment_amount": req.Amount,
			})
	}

	p := &Payment{
		OrderID:         req.OrderID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		OrderTotal:      info.TotalAmount,
		ChangeAmount:    req.Amount - info.TotalAmount,
	}

	code, err := s.store.MethodCode(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, domain.ErrTransaction("Failed to resolve payment method").Wrap(err)
	}

	if execErr := executeMethod(code); execErr == "" {
		paidAt := s.now().UTC()
		p.Status = StatusCompleted
		p.TransactionID = uuid.New().String()
		p.PaidAt = &paidAt
	} else {
		p.Status = StatusFailed
		p.ErrorMessage = execErr
	}

	if err := s.store.Insert(ctx, p); err != nil {
		return nil, domain.ErrTransaction("Failed to process payment").Wrap(err)
	}

	// Past the local commit; event loss here is not retried.
	if p.Status == StatusCompleted {
		s.publishCompleted(ctx, p, info.ItemsCount)
		return p, nil
	}

	s.publishFailed(ctx, p)
	return p, domain.ErrClient("Payment failed").WithDetails(map[string]string{"error": p.ErrorMessage})
}

// Summary returns the aggregate counts for the gateway dashboard.
func (s *Service) Summary(ctx context.Context) (*Summary, *domain.Error) {
	sum, err := s.store.Summary(ctx)
	if err != nil {
		return nil, domain.ErrTransaction("Failed to load summary").Wrap(err)
	}
	return sum, nil
}

// executeMethod simulates method-specific processing. Known methods
// succeed; an unknown or inactive method is a failed payment.
func executeMethod(code string) string {
	switch code {
	case "cash", "bank_transfer", "qris", "credit_card":
		return ""
	default:
		return "Invalid payment method"
	}
}

func (s *Service) publishCompleted(ctx context.Context, p *Payment, itemsCount int) {
	err := s.bus.Publish(ctx, events.PaymentCompleted, &events.PaymentCompletedEvent{
		Version:         events.SchemaVersion,
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		ChangeAmount:    p.ChangeAmount,
		Status:          p.Status,
		PaidAt:          p.PaidAt.Format(time.RFC3339),
		ItemsCount:      itemsCount,
	})
	if err != nil {
		s.logger.Error("payment.completed publish failed after commit",
			slog.Int64("payment_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) publishFailed(ctx context.Context, p *Payment) {
	err := s.bus.Publish(ctx, events.PaymentFailed, &events.PaymentFailedEvent{
		Version:         events.SchemaVersion,
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		Status:          p.Status,
		Error:           p.ErrorMessage,
	})
	if err != nil {
		s.logger.Error("payment.failed publish failed after commit",
			slog.Int64("payment_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}
