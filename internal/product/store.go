// Package product holds the product store and the stock-adjustment saga
// step that reacts to order lifecycle events.
package product

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the slice of the product record the saga step needs.
type Product struct {
	ID        int64
	Name      string
	Stock     int
	Available bool
}

// Store opens transactions over the product table. All item adjustments
// for one message run inside one transaction.
type Store interface {
	// InTx runs fn inside a transaction, committing on nil and rolling
	// back on error.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transaction-scoped product access used by the saga step.
type Tx interface {
	// Product fetches one product by id, locked for update.
	Product(ctx context.Context, id int64) (*Product, error)

	// SetStock writes the new stock level and availability flag.
	SetStock(ctx context.Context, id int64, stock int, available bool) error
}
