package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kasirpos/platform/internal/events"
)

// StockHandler is the consumer-side saga step for order lifecycle events:
// order.created decrements stock per item, order.cancelled increments it
// back (the compensating action).
type StockHandler struct {
	store  Store
	logger *slog.Logger
}

// NewStockHandler builds the handler over the given store.
func NewStockHandler(store Store, logger *slog.Logger) *StockHandler {
	return &StockHandler{store: store, logger: logger}
}

// adjustment is one stock change derived from an event item.
type adjustment struct {
	productID int64
	quantity  int
}

// Handle processes one order event. Per-item problems (missing product,
// insufficient stock) are logged and skipped rather than failing the
// message: the order already committed on its own service, and dropping the
// whole event over one discrepancy would lose the remaining adjustments.
// Only storage-level failures surface as errors.
func (h *StockHandler) Handle(ctx context.Context, routingKey string, data []byte) error {
	decoded, err := events.Decode(routingKey, data)
	if err != nil {
		return err
	}

	var (
		orderID  int64
		decrease bool
		items    []adjustment
	)

	switch ev := decoded.(type) {
	case *events.OrderCreatedEvent:
		orderID = ev.OrderID
		decrease = true
		for _, item := range ev.Items {
			items = append(items, adjustment{productID: item.ProductID, quantity: item.Quantity})
		}
	case *events.OrderCancelledEvent:
		orderID = ev.OrderID
		decrease = false
		for _, item := range ev.Items {
			items = append(items, adjustment{productID: item.ProductID, quantity: item.Quantity})
		}
	default:
		return fmt.Errorf("stock handler received unexpected event %s", routingKey)
	}

	if orderID == 0 || len(items) == 0 {
		h.logger.Warn("order event missing order_id or items",
			slog.String("routing_key", routingKey),
		)
		return nil
	}

	return h.store.InTx(ctx, func(tx Tx) error {
		for _, adj := range items {
			if adj.productID == 0 || adj.quantity <= 0 {
				continue
			}
			if err := h.apply(ctx, tx, orderID, adj, decrease); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *StockHandler) apply(ctx context.Context, tx Tx, orderID int64, adj adjustment, decrease bool) error {
	p, err := tx.Product(ctx, adj.productID)
	if errors.Is(err, ErrNotFound) {
		h.logger.Warn("product not found for order event",
			slog.Int64("product_id", adj.productID),
			slog.Int64("order_id", orderID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	stock := p.Stock
	if decrease {
		if stock < adj.quantity {
			// No partial decrement; the order stands, the
			// discrepancy is an accounting problem, not an error.
			h.logger.Warn("insufficient stock for order event",
				slog.Int64("product_id", adj.productID),
				slog.Int64("order_id", orderID),
				slog.Int("stock", stock),
				slog.Int("requested", adj.quantity),
			)
			return nil
		}
		stock -= adj.quantity
	} else {
		stock += adj.quantity
	}

	if err := tx.SetStock(ctx, adj.productID, stock, stock > 0); err != nil {
		return err
	}

	h.logger.Info("stock adjusted",
		slog.Int64("product_id", adj.productID),
		slog.Int64("order_id", orderID),
		slog.Int("quantity", adj.quantity),
		slog.Bool("decrease", decrease),
		slog.Int("remaining", stock),
	)
	return nil
}
