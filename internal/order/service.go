package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasirpos/platform/internal/domain"
	"github.com/kasirpos/platform/internal/events"
)

// Publisher is the slice of the event publisher the service needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Service owns the order lifecycle. Writes commit locally before any event
// is published; a publish failure is logged and the write stands.
type Service struct {
	store  Store
	stock  StockChecker
	bus    Publisher
	logger *slog.Logger
}

// NewService wires the order service.
func NewService(store Store, stock StockChecker, bus Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, stock: stock, bus: bus, logger: logger}
}

// CreateRequest is the inbound shape for order creation.
type CreateRequest struct {
	UserID int64         `json:"user_id"`
	Items  []ItemRequest `json:"items"`
	Notes  string        `json:"notes"`
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Create validates the request, checks stock with the product service,
// commits the order and its items in one transaction, then publishes
// order.created.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, *domain.Error) {
	if req.UserID == 0 {
		return nil, domain.ErrClient("user_id is required")
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrClient("at least one item is required")
	}
	for _, item := range req.Items {
		if item.ProductID == 0 || item.Quantity < 1 || item.Price < 0 {
			return nil, domain.ErrClient("invalid item: product_id, quantity >= 1 and price >= 0 required")
		}
	}

	checkItems := make([]CheckItem, 0, len(req.Items))
	for _, item := range req.Items {
		checkItems = append(checkItems, CheckItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	statuses, err := s.stock.Check(ctx, checkItems)
	if err != nil {
		return nil, domain.ErrDependency("Stock check failed").WithService("product").Wrap(err)
	}

	var unavailable []StockStatus
	for _, st := range statuses {
		if !st.IsAvailable {
			unavailable = append(unavailable, st)
		}
	}
	if len(unavailable) > 0 {
		return nil, domain.ErrClient("Stock not available").WithDetails(unavailable)
	}

	o := &Order{
		UserID:      req.UserID,
		OrderNumber: newOrderNumber(),
		Status:      StatusPending,
		Notes:       req.Notes,
	}
	for _, item := range req.Items {
		subtotal := float64(item.Quantity) * item.Price
		o.TotalAmount += subtotal
		o.Items = append(o.Items, Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  subtotal,
		})
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, domain.ErrTransaction("Failed to create order").Wrap(err)
	}

	// Past the local commit; a publish failure here loses the event.
	s.publishCreated(ctx, o)

	return o, nil
}

// Cancel flips the order to cancelled and publishes the compensating
// order.cancelled event. Cancelling an already-cancelled order is a no-op.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, *domain.Error) {
	existing, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrNotFound("Order not found")
	}
	if err != nil {
		return nil, domain.ErrTransaction("Failed to load order").Wrap(err)
	}

	if existing.Status == StatusCancelled {
		return existing, nil
	}
	if existing.Status == StatusCompleted {
		return nil, domain.ErrClient("Cannot cancel completed order")
	}

	o, err := s.store.SetStatus(ctx, id, StatusCancelled)
	if err != nil {
		return nil, domain.ErrTransaction("Failed to cancel order").Wrap(err)
	}

	s.publishCancelled(ctx, o)

	return o, nil
}

// Get loads one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, *domain.Error) {
	o, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrNotFound("Order not found")
	}
	if err != nil {
		return nil, domain.ErrTransaction("Failed to load order").Wrap(err)
	}
	return o, nil
}

// Summary returns the aggregate counts for the gateway dashboard.
func (s *Service) Summary(ctx context.Context) (*Summary, *domain.Error) {
	sum, err := s.store.Summary(ctx)
	if err != nil {
		return nil, domain.ErrTransaction("Failed to load summary").Wrap(err)
	}
	return sum, nil
}

func (s *Service) publishCreated(ctx context.Context, o *Order) {
	items := make([]events.OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, events.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal,
		})
	}

	err := s.bus.Publish(ctx, events.OrderCreated, &events.OrderCreatedEvent{
		Version:     events.SchemaVersion,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Items:       items,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		// The order committed; there is no retry for the lost event.
		s.logger.Error("order.created publish failed after commit",
			slog.Int64("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) publishCancelled(ctx context.Context, o *Order) {
	items := make([]events.CancelledItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, events.CancelledItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	err := s.bus.Publish(ctx, events.OrderCancelled, &events.OrderCancelledEvent{
		Version:   events.SchemaVersion,
		OrderID:   o.ID,
		Status:    StatusCancelled,
		Items:     items,
		UpdatedAt: o.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("order.cancelled publish failed after commit",
			slog.Int64("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
}

func newOrderNumber() string {
	fragment := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), strings.ToUpper(fragment))
}
