package product

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

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Product(ctx context.Context, id int64) (*Product, error) {
	var p Product
	var status string
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, stock, status FROM products WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&p.ID, &p.Name, &p.Stock, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product %d: %w", id, err)
	}
	p.Available = status == "available"
	return &p, nil
}

func (t *pgTx) SetStock(ctx context.Context, id int64, stock int, available bool) error {
	status := "out_of_stock"
	if available {
		status = "available"
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, stock, status,
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	return nil
}
