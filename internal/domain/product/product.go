package product

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrConflict          = errors.New("product: already exists")
	ErrForbidden         = errors.New("product: actor does not own this product")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInvalidStockLevel = errors.New("product: stock level must be zero or greater")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

// StockRecord holds the stock-related fields of a product. The catalog owns
// the rest of the product (name, images, pricing); this engine only ever reads
// and writes these fields.
//
// InitialStock is set once at registration and never mutated afterwards.
// BaselineStock starts equal to InitialStock and moves to the new level on
// every restock; it is the denominator for percentage and status computation.
type StockRecord struct {
	ProductID         string
	SellerID          string
	StockLevel        int
	MinimumStock      int
	InitialStock      int
	BaselineStock     int
	BaselineUpdatedAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewStockRecord(productID, sellerID string, stockLevel, minimumStock int) (*StockRecord, error) {
	if stockLevel < 0 {
		return nil, ErrInvalidStockLevel
	}
	if minimumStock < 0 {
		return nil, ErrInvalidStockLevel
	}

	now := time.Now().UTC()
	return &StockRecord{
		ProductID:         productID,
		SellerID:          sellerID,
		StockLevel:        stockLevel,
		MinimumStock:      minimumStock,
		InitialStock:      stockLevel,
		BaselineStock:     stockLevel,
		BaselineUpdatedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Deduct removes quantity from the current level. It fails rather than clamps
// when the level would go negative.
func (r *StockRecord) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > r.StockLevel {
		return ErrInsufficientStock
	}
	r.StockLevel -= quantity
	r.touch()
	return nil
}

// Restore adds quantity back after an order leaves PENDING via a terminal
// failure. Restoring has no capacity precondition.
func (r *StockRecord) Restore(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	r.StockLevel += quantity
	r.touch()
	return nil
}

// Rebaseline applies a restock: the level and the baseline both move to
// newLevel and the baseline timestamp is stamped. InitialStock stays put.
func (r *StockRecord) Rebaseline(newLevel int) error {
	if newLevel < 0 {
		return ErrInvalidStockLevel
	}
	r.StockLevel = newLevel
	r.BaselineStock = newLevel
	r.BaselineUpdatedAt = time.Now().UTC()
	r.touch()
	return nil
}

// SetLevel changes the level without touching the baseline. Used for seller
// edits that decrease or keep the quantity.
func (r *StockRecord) SetLevel(newLevel int) error {
	if newLevel < 0 {
		return ErrInvalidStockLevel
	}
	r.StockLevel = newLevel
	r.touch()
	return nil
}

func (r *StockRecord) Clone() *StockRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

func (r *StockRecord) touch() {
	r.UpdatedAt = time.Now().UTC()
}
