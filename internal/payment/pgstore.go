package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, p *Payment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payments
		        (order_id, payment_method_id, amount, order_total, change_amount,
		         status, transaction_id, error_message, paid_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, now())
		 RETURNING id, created_at`,
		p.OrderID, p.PaymentMethodID, p.Amount, p.OrderTotal, p.ChangeAmount,
		p.Status, p.TransactionID, p.ErrorMessage, p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PGStore) MethodCode(ctx context.Context, id int64) (string, error) {
	var code string
	err := s.pool.QueryRow(ctx,
		`SELECT code FROM payment_methods WHERE id = $1 AND is_active`,
		id,
	).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select payment method %d: %w", id, err)
	}
	return code, nil
}

func (s *PGStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'completed'),
		        count(*) FILTER (WHERE status = 'failed'),
		        count(*) FILTER (WHERE created_at::date = current_date),
		        COALESCE(sum(amount) FILTER (WHERE status = 'completed' AND created_at::date = current_date), 0)
		   FROM payments`,
	).Scan(&sum.TotalPayments, &sum.CompletedPayments, &sum.FailedPayments,
		&sum.TodayPayments, &sum.TodayRevenue)
	if err != nil {
		return nil, fmt.Errorf("payment summary: %w", err)
	}
	return &sum, nil
}
