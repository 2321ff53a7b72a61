package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	appstock "github.com/sellerhub/stockengine/internal/application/stock"
	"github.com/sellerhub/stockengine/internal/application/usecase"
	domoutbox "github.com/sellerhub/stockengine/internal/domain/outbox"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/domain/storage"
	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	productService = "product-service"

	useCaseRegister    = "product.register"
	useCaseUpdateStock = "product.update_stock"
	useCaseGet         = "product.get"

	publishTimeout = 300 * time.Millisecond
)

// IDGenerator produces product identifiers when the caller does not bring one.
type IDGenerator interface {
	NewID() string
}

// Service owns the seller-facing stock surface: registration, stock edits
// with restock detection, and the read-side view with the computed
// percentage/status fields.
type Service struct {
	store       storage.Store
	coordinator *appstock.Coordinator
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tel         observability.Telemetry
	log         observability.Logger
}

func NewService(
	store storage.Store,
	coordinator *appstock.Coordinator,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		store:       store,
		coordinator: coordinator,
		idGenerator: idGen,
		publisher:   publisher,
		tel:         tel,
		log:         tel.Logger().With(observability.F("service", productService)),
	}
}

// StockView is the read model: stored fields plus the percentage and status
// derived at read time from StockLevel/BaselineStock.
type StockView struct {
	ProductID         string
	SellerID          string
	StockLevel        int
	MinimumStock      int
	InitialStock      int
	BaselineStock     int
	BaselineUpdatedAt time.Time
	StockPercentage   float64
	StockStatus       domproduct.Status
}

func newStockView(r *domproduct.StockRecord) *StockView {
	percentage, status := domproduct.Classify(r.StockLevel, r.BaselineStock)
	return &StockView{
		ProductID:         r.ProductID,
		SellerID:          r.SellerID,
		StockLevel:        r.StockLevel,
		MinimumStock:      r.MinimumStock,
		InitialStock:      r.InitialStock,
		BaselineStock:     r.BaselineStock,
		BaselineUpdatedAt: r.BaselineUpdatedAt,
		StockPercentage:   percentage,
		StockStatus:       status,
	}
}

type RegisterInput struct {
	ProductID    string
	SellerID     string
	StockLevel   int
	MinimumStock int
}

// Register seeds the stock record at product creation:
// initial = baseline = the first stock level.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *StockView, err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseRegister, "RegisterProduct",
		attribute.String("product.seller_id", in.SellerID),
	)
	defer op.End(&err)

	if in.SellerID == "" {
		return nil, op.Fail("SELLER_ID_REQUIRED", errors.New("product: seller id is required"))
	}

	productID := in.ProductID
	if productID == "" {
		productID = s.idGenerator.NewID()
	}

	record, err := domproduct.NewStockRecord(productID, in.SellerID, in.StockLevel, in.MinimumStock)
	if err != nil {
		return nil, op.Fail("STOCK_LEVEL_INVALID", err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.Fail("TX_BEGIN_FAILED", fmt.Errorf("product: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.Stock().Insert(ctx, record); err != nil {
		if errors.Is(err, domproduct.ErrConflict) {
			return nil, op.Fail("PRODUCT_EXISTS", err)
		}
		return nil, op.Fail("REPO_INSERT_FAILED", fmt.Errorf("product: insert: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, op.Fail("TX_COMMIT_FAILED", fmt.Errorf("product: commit: %w", err))
	}

	op.Note(attribute.String("product.id", record.ProductID))
	return newStockView(record), nil
}

// UpdateStock applies a seller stock edit. The restock decision is pure:
// an increase rebaselines, a decrease or unchanged value is a plain update.
// Only the owning seller may edit.
func (s *Service) UpdateStock(ctx context.Context, productID string, newLevel int, sellerID string) (_ *StockView, err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseUpdateStock, "UpdateStock",
		attribute.String("product.id", productID),
		attribute.Int("product.new_stock_level", newLevel),
	)
	defer op.End(&err)

	if newLevel < 0 {
		return nil, op.Fail("STOCK_LEVEL_INVALID", domproduct.ErrInvalidStockLevel)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.Fail("TX_BEGIN_FAILED", fmt.Errorf("product: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := tx.Stock().GetForUpdate(ctx, productID)
	if err != nil {
		return nil, op.Fail("PRODUCT_LOAD_FAILED", err)
	}
	if record.SellerID != sellerID {
		return nil, op.Fail("FORBIDDEN", domproduct.ErrForbidden)
	}

	oldLevel := record.StockLevel
	rebaselined := domproduct.DecideUpdate(oldLevel, newLevel) == domproduct.Rebaseline
	if rebaselined {
		record, err = s.coordinator.Rebaseline(ctx, tx, productID, newLevel)
	} else {
		record, err = s.coordinator.SetWithoutRebaseline(ctx, tx, productID, newLevel)
	}
	if err != nil {
		return nil, op.Fail("STOCK_UPDATE_FAILED", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, op.Fail("TX_COMMIT_FAILED", fmt.Errorf("product: commit: %w", err))
	}

	op.Note(attribute.Bool("product.rebaselined", rebaselined))
	s.publish(ctx, domproduct.NewStockChangedEvent(record, oldLevel, rebaselined))
	return newStockView(record), nil
}

// Get returns the stock view for the read-side collaborator.
func (s *Service) Get(ctx context.Context, productID string) (_ *StockView, err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseGet, "GetProduct",
		attribute.String("product.id", productID),
	)
	defer op.End(&err)

	if productID == "" {
		return nil, op.Fail("PRODUCT_ID_REQUIRED", errors.New("product: id is required"))
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.Fail("TX_BEGIN_FAILED", fmt.Errorf("product: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := tx.Stock().Get(ctx, productID)
	if err != nil {
		return nil, op.Fail("PRODUCT_LOAD_FAILED", err)
	}
	return newStockView(record), nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
