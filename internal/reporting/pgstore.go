package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a pgx connection pool. The breakdown maps
// are stored as JSONB columns.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Find(ctx context.Context, typ, startDate, endDate string) (*Aggregate, error) {
	agg := Aggregate{Type: typ, StartDate: startDate, EndDate: endDate}
	var byMethod, byDay []byte

	err := s.pool.QueryRow(ctx,
		`SELECT total_transactions, total_revenue, total_items_sold, average_order_value,
		        by_payment_method, daily_breakdown
		   FROM sales_reports
		  WHERE type = $1 AND start_date = $2 AND end_date = $3`,
		typ, startDate, endDate,
	).Scan(&agg.TotalTransactions, &agg.TotalRevenue, &agg.TotalItemsSold,
		&agg.AverageOrderValue, &byMethod, &byDay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}

	if len(byMethod) > 0 {
		if err := json.Unmarshal(byMethod, &agg.ByPaymentMethod); err != nil {
			return nil, fmt.Errorf("decode by_payment_method: %w", err)
		}
	}
	if len(byDay) > 0 {
		if err := json.Unmarshal(byDay, &agg.ByDay); err != nil {
			return nil, fmt.Errorf("decode daily_breakdown: %w", err)
		}
	}

	return &agg, nil
}

func (s *PGStore) Upsert(ctx context.Context, agg *Aggregate) error {
	byMethod, err := json.Marshal(agg.ByPaymentMethod)
	if err != nil {
		return fmt.Errorf("encode by_payment_method: %w", err)
	}
	byDay, err := json.Marshal(agg.ByDay)
	if err != nil {
		return fmt.Errorf("encode daily_breakdown: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sales_reports
		        (type, start_date, end_date, total_transactions, total_revenue,
		         total_items_sold, average_order_value, by_payment_method,
		         daily_breakdown, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (type, start_date, end_date) DO UPDATE SET
		        total_transactions = EXCLUDED.total_transactions,
		        total_revenue = EXCLUDED.total_revenue,
		        total_items_sold = EXCLUDED.total_items_sold,
		        average_order_value = EXCLUDED.average_order_value,
		        by_payment_method = EXCLUDED.by_payment_method,
		        daily_breakdown = EXCLUDED.daily_breakdown,
		        generated_at = now()`,
		agg.Type, agg.StartDate, agg.EndDate, agg.TotalTransactions,
		agg.TotalRevenue, agg.TotalItemsSold, agg.AverageOrderValue,
		byMethod, byDay,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}
