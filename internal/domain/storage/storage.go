package storage

import (
	"context"

	"github.com/sellerhub/stockengine/internal/domain/order"
	"github.com/sellerhub/stockengine/internal/domain/product"
)

// Tx is an explicit unit of work. The order-status write and the stock write
// of a single operation go through the same Tx and become visible together on
// Commit or not at all. The caller creates it, the caller ends it; there is no
// ambient transaction context.
//
// Rollback after a successful Commit is a no-op, so `defer tx.Rollback(ctx)`
// is always safe.
type Tx interface {
	Orders() order.Repository
	Stock() product.Repository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens units of work.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}
