package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	appstock "github.com/sellerhub/stockengine/internal/application/stock"
	"github.com/sellerhub/stockengine/internal/application/usecase"
	domorder "github.com/sellerhub/stockengine/internal/domain/order"
	domoutbox "github.com/sellerhub/stockengine/internal/domain/outbox"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/domain/storage"
	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService = "order-service"

	useCaseCreate  = "order.create"
	useCaseCancel  = "order.cancel"
	useCaseReject  = "order.reject"
	useCaseAccept  = "order.accept"
	useCaseFulfill = "order.fulfill"
	useCaseDeliver = "order.deliver"
	useCaseGet     = "order.get"

	publishTimeout = 300 * time.Millisecond
)

// Service drives the order lifecycle. Checkout deducts stock and inserts the
// order in one transaction; cancel and reject flip the status and restore
// stock in one transaction. No retries here; retry policy belongs to callers.
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
		log:         tel.Logger().With(observability.F("service", orderService)),
	}
}

type CreateOrderInput struct {
	BuyerID   string
	ProductID string
	Quantity  int
}

type CreateOrderResult struct {
	OrderID        string
	Status         domorder.Status
	StockRemaining int
}

// CreateOrder persists a PENDING order and deducts its quantity from the
// product atomically. Insufficient stock aborts the whole checkout: no order
// row exists afterwards.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseCreate, "CreateOrder",
		attribute.String("order.buyer_id", in.BuyerID),
		attribute.String("order.product_id", in.ProductID),
	)
	defer op.End(&err)

	if in.BuyerID == "" {
		return nil, op.Fail("BUYER_ID_REQUIRED", errors.New("order: buyer id is required"))
	}
	if in.ProductID == "" {
		return nil, op.Fail("PRODUCT_ID_REQUIRED", errors.New("order: product id is required"))
	}
	if in.Quantity <= 0 {
		return nil, op.Fail("QUANTITY_INVALID", domorder.ErrInvalidQuantity)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.Fail("TX_BEGIN_FAILED", fmt.Errorf("order: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := s.coordinator.DeductOnCreate(ctx, tx, in.ProductID, in.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, domproduct.ErrInsufficientStock):
			return nil, op.Fail("INSUFFICIENT_STOCK", err)
		case errors.Is(err, domproduct.ErrNotFound):
			return nil, op.Fail("PRODUCT_NOT_FOUND", err)
		default:
			return nil, op.Fail("STOCK_DEDUCT_FAILED", err)
		}
	}

	entity, err := domorder.New(s.idGenerator.NewID(), in.BuyerID, record.SellerID, in.ProductID, in.Quantity)
	if err != nil {
		return nil, op.Fail("DOMAIN_CONSTRUCTION_FAILED", err)
	}
	if err := tx.Orders().Insert(ctx, entity); err != nil {
		return nil, op.Fail("REPO_INSERT_FAILED", fmt.Errorf("order: insert: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, op.Fail("TX_COMMIT_FAILED", fmt.Errorf("order: commit: %w", err))
	}

	op.Note(attribute.String("order.id", entity.ID))
	s.publish(ctx, domorder.NewOrderCreatedEvent(entity))
	s.publish(ctx, domproduct.NewStockChangedEvent(record, record.StockLevel+in.Quantity, false))

	return &CreateOrderResult{
		OrderID:        entity.ID,
		Status:         entity.Status,
		StockRemaining: record.StockLevel,
	}, nil
}

// CancelOrder is the buyer's exit from PENDING: the status flip and the stock
// restoration commit together. A second cancel of the same order fails with
// ErrInvalidTransition and never restores twice.
func (s *Service) CancelOrder(ctx context.Context, orderID, buyerID string) (err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseCancel, "CancelOrder",
		attribute.String("order.id", orderID),
	)
	defer op.End(&err)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return op.Fail("TX_BEGIN_FAILED", fmt.Errorf("order: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entity, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return op.Fail("ORDER_LOAD_FAILED", err)
	}
	if err := entity.Cancel(buyerID); err != nil {
		return op.Fail(transitionStatus(err), err)
	}

	record, err := s.coordinator.RestoreOnTerminalFailure(ctx, tx, entity.ProductID, entity.Quantity)
	if err != nil {
		return op.Fail("STOCK_RESTORE_FAILED", err)
	}
	if err := tx.Orders().Update(ctx, entity); err != nil {
		return op.Fail("REPO_UPDATE_FAILED", fmt.Errorf("order: update: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return op.Fail("TX_COMMIT_FAILED", fmt.Errorf("order: commit: %w", err))
	}

	s.publish(ctx, domorder.NewOrderCancelledEvent(entity))
	if record != nil {
		s.publish(ctx, domproduct.NewStockChangedEvent(record, record.StockLevel-entity.Quantity, false))
	}
	return nil
}

// RejectOrder is the seller's exit from PENDING, with the same atomicity as
// CancelOrder. The reason is stored verbatim on the order.
func (s *Service) RejectOrder(ctx context.Context, orderID, sellerID, reason string) (err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseReject, "RejectOrder",
		attribute.String("order.id", orderID),
	)
	defer op.End(&err)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return op.Fail("TX_BEGIN_FAILED", fmt.Errorf("order: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entity, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return op.Fail("ORDER_LOAD_FAILED", err)
	}
	if err := entity.Reject(sellerID, reason); err != nil {
		return op.Fail(transitionStatus(err), err)
	}

	record, err := s.coordinator.RestoreOnTerminalFailure(ctx, tx, entity.ProductID, entity.Quantity)
	if err != nil {
		return op.Fail("STOCK_RESTORE_FAILED", err)
	}
	if err := tx.Orders().Update(ctx, entity); err != nil {
		return op.Fail("REPO_UPDATE_FAILED", fmt.Errorf("order: update: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return op.Fail("TX_COMMIT_FAILED", fmt.Errorf("order: commit: %w", err))
	}

	s.publish(ctx, domorder.NewOrderRejectedEvent(entity))
	if record != nil {
		s.publish(ctx, domproduct.NewStockChangedEvent(record, record.StockLevel-entity.Quantity, false))
	}
	return nil
}

// AcceptOrder moves PENDING → ACCEPTED. Pure status transition, no stock
// effect.
func (s *Service) AcceptOrder(ctx context.Context, orderID, sellerID string) error {
	return s.forward(ctx, useCaseAccept, "AcceptOrder", orderID, func(o *domorder.Order) error {
		return o.Accept(sellerID)
	})
}

// FulfillOrder moves ACCEPTED → FULFILLED.
func (s *Service) FulfillOrder(ctx context.Context, orderID, sellerID string) error {
	return s.forward(ctx, useCaseFulfill, "FulfillOrder", orderID, func(o *domorder.Order) error {
		return o.Fulfill(sellerID)
	})
}

// DeliverOrder moves FULFILLED → DELIVERED and stamps CompletedAt.
func (s *Service) DeliverOrder(ctx context.Context, orderID, sellerID string) error {
	return s.forward(ctx, useCaseDeliver, "DeliverOrder", orderID, func(o *domorder.Order) error {
		return o.Deliver(sellerID)
	})
}

func (s *Service) forward(ctx context.Context, useCase, spanName, orderID string, transition func(*domorder.Order) error) (err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCase, spanName,
		attribute.String("order.id", orderID),
	)
	defer op.End(&err)

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return op.Fail("TX_BEGIN_FAILED", fmt.Errorf("order: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entity, err := tx.Orders().GetForUpdate(ctx, orderID)
	if err != nil {
		return op.Fail("ORDER_LOAD_FAILED", err)
	}
	if err := transition(entity); err != nil {
		return op.Fail(transitionStatus(err), err)
	}
	if err := tx.Orders().Update(ctx, entity); err != nil {
		return op.Fail("REPO_UPDATE_FAILED", fmt.Errorf("order: update: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return op.Fail("TX_COMMIT_FAILED", fmt.Errorf("order: commit: %w", err))
	}
	return nil
}

// Get returns a snapshot of the order.
func (s *Service) Get(ctx context.Context, orderID string) (_ *domorder.Order, err error) {
	ctx, op := usecase.Start(ctx, s.tel, s.log, useCaseGet, "GetOrder",
		attribute.String("order.id", orderID),
	)
	defer op.End(&err)

	if orderID == "" {
		return nil, op.Fail("ORDER_ID_REQUIRED", errors.New("order: id is required"))
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.Fail("TX_BEGIN_FAILED", fmt.Errorf("order: begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	entity, err := tx.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, op.Fail("ORDER_LOAD_FAILED", err)
	}
	return entity, nil
}

// publish is best-effort after commit; a publish failure never fails the
// already-committed operation.
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

func transitionStatus(err error) string {
	switch {
	case errors.Is(err, domorder.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, domorder.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	default:
		return "STATE_TRANSITION_FAILED"
	}
}
