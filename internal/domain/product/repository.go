package product

import "context"

// Repository is the stock side of a unit of work. GetForUpdate takes an
// exclusive per-product lock held until the transaction ends; two mutations
// of the same product serialize, different products never block each other.
type Repository interface {
	Get(ctx context.Context, productID string) (*StockRecord, error)
	GetForUpdate(ctx context.Context, productID string) (*StockRecord, error)
	Insert(ctx context.Context, record *StockRecord) error
	Update(ctx context.Context, record *StockRecord) error
	// Delete exists for the catalog collaborator that owns product lifecycle.
	Delete(ctx context.Context, productID string) error
}
