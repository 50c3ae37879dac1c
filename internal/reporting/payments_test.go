package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirpos/platform/internal/events"
)

type fakeStore struct {
	aggregates map[string]*Aggregate
	findErr    error
	upsertErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{aggregates: make(map[string]*Aggregate)}
}

func aggKey(typ, start, end string) string {
	return typ + "|" + start + "|" + end
}

func (s *fakeStore) Find(_ context.Context, typ, startDate, endDate string) (*Aggregate, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	agg, ok := s.aggregates[aggKey(typ, startDate, endDate)]
	if !ok {
		return nil, nil
	}
	cp := *agg
	return &cp, nil
}

func (s *fakeStore) Upsert(_ context.Context, agg *Aggregate) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *agg
	s.aggregates[aggKey(agg.Type, agg.StartDate, agg.EndDate)] = &cp
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paymentCompletedPayload(t *testing.T, ev events.PaymentCompletedEvent) []byte {
	t.Helper()
	ev.Version = events.SchemaVersion
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestPaymentCreatesDailyAggregate(t *testing.T) {
	store := newFakeStore()
	h := NewPaymentHandler(store, testLogger())

	data := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID:       1,
		OrderID:         10,
		PaymentMethodID: 2,
		Amount:          150,
		ItemsCount:      3,
		PaidAt:          "2025-06-01T09:30:00Z",
	})
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, data))

	agg := store.aggregates[aggKey(AggregateDaily, "2025-06-01", "2025-06-01")]
	require.NotNil(t, agg)
	assert.Equal(t, 1, agg.TotalTransactions)
	assert.Equal(t, 150.0, agg.TotalRevenue)
	assert.Equal(t, 3, agg.TotalItemsSold)
	assert.Equal(t, 150.0, agg.AverageOrderValue)
	assert.Equal(t, Breakdown{Count: 1, Total: 150}, agg.ByPaymentMethod["2"])
	assert.Equal(t, Breakdown{Count: 1, Total: 150}, agg.ByDay["2025-06-01"])
}

func TestPaymentAccumulatesIntoExistingAggregate(t *testing.T) {
	store := newFakeStore()
	h := NewPaymentHandler(store, testLogger())

	first := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 1, OrderID: 10, PaymentMethodID: 1,
		Amount: 150, ItemsCount: 2, PaidAt: "2025-06-01T09:30:00Z",
	})
	second := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 2, OrderID: 11, PaymentMethodID: 2,
		Amount: 250, ItemsCount: 1, PaidAt: "2025-06-01T15:00:00Z",
	})
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, first))
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, second))

	agg := store.aggregates[aggKey(AggregateDaily, "2025-06-01", "2025-06-01")]
	require.NotNil(t, agg)
	assert.Equal(t, 2, agg.TotalTransactions)
	assert.Equal(t, 400.0, agg.TotalRevenue)
	assert.Equal(t, 3, agg.TotalItemsSold)
	assert.Equal(t, 200.0, agg.AverageOrderValue)
	assert.Equal(t, Breakdown{Count: 1, Total: 150}, agg.ByPaymentMethod["1"])
	assert.Equal(t, Breakdown{Count: 1, Total: 250}, agg.ByPaymentMethod["2"])
	assert.Equal(t, Breakdown{Count: 2, Total: 400}, agg.ByDay["2025-06-01"])
}

func TestPaymentDateFallsBackToProcessingTime(t *testing.T) {
	store := newFakeStore()
	h := NewPaymentHandler(store, testLogger())
	h.now = func() time.Time {
		return time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC)
	}

	data := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 1, OrderID: 10, PaymentMethodID: 1, Amount: 99,
	})
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, data))

	agg := store.aggregates[aggKey(AggregateDaily, "2025-07-04", "2025-07-04")]
	require.NotNil(t, agg)
	assert.Equal(t, 99.0, agg.TotalRevenue)
}

func TestPaymentSeparateDatesSeparateAggregates(t *testing.T) {
	store := newFakeStore()
	h := NewPaymentHandler(store, testLogger())

	dayOne := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 1, PaymentMethodID: 1, Amount: 100, PaidAt: "2025-06-01T10:00:00Z",
	})
	dayTwo := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 2, PaymentMethodID: 1, Amount: 300, PaidAt: "2025-06-02T10:00:00Z",
	})
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, dayOne))
	require.NoError(t, h.Handle(context.Background(), events.PaymentCompleted, dayTwo))

	assert.Len(t, store.aggregates, 2)
	assert.Equal(t, 100.0, store.aggregates[aggKey(AggregateDaily, "2025-06-01", "2025-06-01")].TotalRevenue)
	assert.Equal(t, 300.0, store.aggregates[aggKey(AggregateDaily, "2025-06-02", "2025-06-02")].TotalRevenue)
}

func TestPaymentMalformedPayloadErrors(t *testing.T) {
	h := NewPaymentHandler(newFakeStore(), testLogger())
	err := h.Handle(context.Background(), events.PaymentCompleted, []byte(`{"amount":"x"}`))
	require.Error(t, err)
}

func TestPaymentStoreFailureSurfaces(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("deadlock detected")
	h := NewPaymentHandler(store, testLogger())

	data := paymentCompletedPayload(t, events.PaymentCompletedEvent{
		PaymentID: 1, PaymentMethodID: 1, Amount: 50, PaidAt: "2025-06-01T10:00:00Z",
	})
	require.Error(t, h.Handle(context.Background(), events.PaymentCompleted, data))
}
