// Package reporting maintains rolling sales aggregates from
// payment.completed events.
package reporting

import (
	"context"
)

// AggregateDaily is the aggregate type this subsystem maintains.
const AggregateDaily = "daily"

// Breakdown is one bucket of a by-method or by-day map.
type Breakdown struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// Aggregate holds the running totals for one (type, startDate, endDate)
// key. Created on the first matching event, updated incrementally, never
// deleted by this subsystem.
type Aggregate struct {
	Type      string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD

	TotalTransactions int
	TotalRevenue      float64
	TotalItemsSold    int
	AverageOrderValue float64

	ByPaymentMethod map[string]Breakdown
	ByDay           map[string]Breakdown
}

// Store persists report aggregates.
type Store interface {
	// Find returns the aggregate for the key, or nil when none exists.
	Find(ctx context.Context, typ, startDate, endDate string) (*Aggregate, error)

	// Upsert writes the aggregate as a single atomic insert-or-update.
	Upsert(ctx context.Context, agg *Aggregate) error
}
