package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kasirpos/platform/internal/events"
)

// PaymentHandler is the consumer-side saga step keeping the daily sales
// aggregates current from payment.completed events.
type PaymentHandler struct {
	store  Store
	logger *slog.Logger

	// now is swappable so tests can pin the fallback date.
	now func() time.Time
}

// NewPaymentHandler builds the handler over the given store.
func NewPaymentHandler(store Store, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{store: store, logger: logger, now: time.Now}
}

// Handle folds one payment.completed event into the daily aggregate for
// the payment's calendar date and persists it as a single upsert.
func (h *PaymentHandler) Handle(ctx context.Context, routingKey string, data []byte) error {
	decoded, err := events.Decode(routingKey, data)
	if err != nil {
		return err
	}

	ev, ok := decoded.(*events.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("payment handler received unexpected event %s", routingKey)
	}

	date := h.eventDate(ev.PaidAt)

	agg, err := h.store.Find(ctx, AggregateDaily, date, date)
	if err != nil {
		return err
	}
	if agg == nil {
		agg = &Aggregate{Type: AggregateDaily, StartDate: date, EndDate: date}
	}
	if agg.ByPaymentMethod == nil {
		agg.ByPaymentMethod = make(map[string]Breakdown)
	}
	if agg.ByDay == nil {
		agg.ByDay = make(map[string]Breakdown)
	}

	agg.TotalTransactions++
	agg.TotalRevenue += ev.Amount
	agg.TotalItemsSold += ev.ItemsCount

	method := strconv.FormatInt(ev.PaymentMethodID, 10)
	byMethod := agg.ByPaymentMethod[method]
	byMethod.Count++
	byMethod.Total += ev.Amount
	agg.ByPaymentMethod[method] = byMethod

	byDay := agg.ByDay[date]
	byDay.Count++
	byDay.Total += ev.Amount
	agg.ByDay[date] = byDay

	if agg.TotalTransactions > 0 {
		agg.AverageOrderValue = agg.TotalRevenue / float64(agg.TotalTransactions)
	} else {
		agg.AverageOrderValue = 0
	}

	if err := h.store.Upsert(ctx, agg); err != nil {
		return err
	}

	h.logger.Info("payment aggregated",
		slog.Int64("order_id", ev.OrderID),
		slog.Float64("amount", ev.Amount),
		slog.String("method", method),
		slog.String("date", date),
	)
	return nil
}

// eventDate derives the calendar date from the payment timestamp, falling
// back to processing time when the timestamp is absent or unparseable.
func (h *PaymentHandler) eventDate(paidAt string) string {
	if paidAt != "" {
		if ts, err := time.Parse(time.RFC3339, paidAt); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return h.now().Format("2006-01-02")
}
