package order

import "time"

// OrderCreatedEvent is emitted after an order is committed in PENDING with
// its stock already deducted.
type OrderCreatedEvent struct {
	OrderID    string
	BuyerID    string
	SellerID   string
	ProductID  string
	Quantity   int
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a buyer cancellation commits.
type OrderCancelledEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	OccurredAt time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderRejectedEvent is emitted after a seller rejection commits.
type OrderRejectedEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	Reason     string
	OccurredAt time.Time
}

func (OrderRejectedEvent) EventName() string { return "order.rejected" }

func NewOrderRejectedEvent(o *Order) OrderRejectedEvent {
	return OrderRejectedEvent{
		OrderID:    o.ID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		Reason:     o.RejectionReason,
		OccurredAt: time.Now().UTC(),
	}
}
