package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: already exists")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrForbidden         = errors.New("order: actor not allowed")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusFulfilled Status = "FULFILLED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Order is created in PENDING at checkout with its quantity already deducted
// from the product's stock. Quantity and ProductID are fixed at creation.
// SellerID is captured from the stock record at creation so actor checks
// survive the seller deleting the product while orders are still pending.
type Order struct {
	ID              string
	ProductID       string
	BuyerID         string
	SellerID        string
	Quantity        int
	Status          Status
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func New(id, buyerID, sellerID, productID string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	return &Order{
		ID:        id,
		ProductID: productID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Quantity:  quantity,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Cancel is the buyer's exit from PENDING. The paired stock restoration is
// the coordinator's job inside the same transaction.
func (o *Order) Cancel(actorID string) error {
	if actorID != o.BuyerID {
		return ErrForbidden
	}
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnCancelled(o) })
}

// Reject is the seller's exit from PENDING. The reason is stored verbatim.
func (o *Order) Reject(actorID, reason string) error {
	if actorID != o.SellerID {
		return ErrForbidden
	}
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnRejected(o, reason) })
}

func (o *Order) Accept(actorID string) error {
	if actorID != o.SellerID {
		return ErrForbidden
	}
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnAccepted(o) })
}

func (o *Order) Fulfill(actorID string) error {
	if actorID != o.SellerID {
		return ErrForbidden
	}
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnFulfilled(o) })
}

func (o *Order) Deliver(actorID string) error {
	if actorID != o.SellerID {
		return ErrForbidden
	}
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnDelivered(o) })
}

// Terminal reports whether no further transition is permitted.
func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		clone.CompletedAt = &at
	}
	return &clone
}

func (o *Order) apply(transition func(OrderState) (OrderState, error)) error {
	next, err := transition(stateOf(o.Status))
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
