package order

import "context"

// Repository is the order side of a unit of work. GetForUpdate locks the
// order row so a terminal transition and its stock restoration commit
// exactly once even under concurrent cancel/reject calls.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}
