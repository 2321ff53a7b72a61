package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/domain/storage"
	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"
)

const componentCoordinator = "stock_coordinator"

// Coordinator is the sole writer of StockLevel and BaselineStock. Every
// mutation runs against a caller-owned transaction so the paired order-status
// write commits in the same unit; the coordinator itself never commits.
type Coordinator struct {
	log            observability.Logger
	skippedCounter observability.Counter
}

func NewCoordinator(tel observability.Telemetry) *Coordinator {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Coordinator{
		log:            tel.Logger().With(observability.F("component", componentCoordinator)),
		skippedCounter: tel.Counter(observability.MStockRestoreSkipped),
	}
}

// DeductOnCreate locks the product row and subtracts quantity. Fails with
// product.ErrInsufficientStock before any write when the level would go
// negative. Returns the record after the deduction.
func (c *Coordinator) DeductOnCreate(ctx context.Context, tx storage.Tx, productID string, quantity int) (*product.StockRecord, error) {
	record, err := tx.Stock().GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := record.Deduct(quantity); err != nil {
		return nil, err
	}
	if err := tx.Stock().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("stock: update: %w", err)
	}
	return record, nil
}

// RestoreOnTerminalFailure adds quantity back when an order leaves PENDING
// via CANCELLED or REJECTED. A product deleted mid-flight is tolerated: the
// restore is skipped, (nil, nil) is returned and the order transition still
// commits. The skip is logged and counted so it stays visible.
func (c *Coordinator) RestoreOnTerminalFailure(ctx context.Context, tx storage.Tx, productID string, quantity int) (*product.StockRecord, error) {
	record, err := tx.Stock().GetForUpdate(ctx, productID)
	if errors.Is(err, product.ErrNotFound) {
		logctx.FromOr(ctx, c.log).Warn("stock_restore_skipped",
			observability.F("product_id", productID),
			observability.F("quantity", quantity),
			observability.F("reason", "product_missing"),
		)
		if c.skippedCounter != nil {
			c.skippedCounter.Add(1)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := record.Restore(quantity); err != nil {
		return nil, err
	}
	if err := tx.Stock().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("stock: update: %w", err)
	}
	return record, nil
}

// Rebaseline applies a seller restock: level and baseline both move to
// newLevel.
func (c *Coordinator) Rebaseline(ctx context.Context, tx storage.Tx, productID string, newLevel int) (*product.StockRecord, error) {
	record, err := tx.Stock().GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := record.Rebaseline(newLevel); err != nil {
		return nil, err
	}
	if err := tx.Stock().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("stock: update: %w", err)
	}
	return record, nil
}

// SetWithoutRebaseline applies a downward or unchanged seller edit: the level
// moves, the baseline stays.
func (c *Coordinator) SetWithoutRebaseline(ctx context.Context, tx storage.Tx, productID string, newLevel int) (*product.StockRecord, error) {
	record, err := tx.Stock().GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := record.SetLevel(newLevel); err != nil {
		return nil, err
	}
	if err := tx.Stock().Update(ctx, record); err != nil {
		return nil, fmt.Errorf("stock: update: %w", err)
	}
	return record, nil
}
