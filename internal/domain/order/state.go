package order

import "time"

// OrderState implements the state pattern for order lifecycle transitions:
// PENDING → {ACCEPTED, CANCELLED, REJECTED}; ACCEPTED → FULFILLED;
// FULFILLED → DELIVERED. DELIVERED, CANCELLED and REJECTED are terminal.
type OrderState interface {
	Status() Status
	OnAccepted(o *Order) (OrderState, error)
	OnFulfilled(o *Order) (OrderState, error)
	OnDelivered(o *Order) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
	OnRejected(o *Order, reason string) (OrderState, error)
}

func stateOf(s Status) OrderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusAccepted:
		return acceptedState{}
	case StatusFulfilled:
		return fulfilledState{}
	case StatusDelivered:
		return terminalState{status: StatusDelivered}
	case StatusCancelled:
		return terminalState{status: StatusCancelled}
	case StatusRejected:
		return terminalState{status: StatusRejected}
	default:
		// Unknown statuses behave like terminal ones: nothing moves.
		return terminalState{status: s}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnAccepted(*Order) (OrderState, error) {
	return acceptedState{}, nil
}

func (pendingState) OnFulfilled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (pendingState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (pendingState) OnCancelled(*Order) (OrderState, error) {
	return terminalState{status: StatusCancelled}, nil
}

func (pendingState) OnRejected(o *Order, reason string) (OrderState, error) {
	o.RejectionReason = reason
	return terminalState{status: StatusRejected}, nil
}

type acceptedState struct{}

func (acceptedState) Status() Status { return StatusAccepted }

func (acceptedState) OnAccepted(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (acceptedState) OnFulfilled(*Order) (OrderState, error) {
	return fulfilledState{}, nil
}

func (acceptedState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (acceptedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (acceptedState) OnRejected(*Order, string) (OrderState, error) {
	return nil, ErrInvalidTransition
}

type fulfilledState struct{}

func (fulfilledState) Status() Status { return StatusFulfilled }

func (fulfilledState) OnAccepted(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (fulfilledState) OnFulfilled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (fulfilledState) OnDelivered(o *Order) (OrderState, error) {
	now := time.Now().UTC()
	o.CompletedAt = &now
	return terminalState{status: StatusDelivered}, nil
}

func (fulfilledState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (fulfilledState) OnRejected(*Order, string) (OrderState, error) {
	return nil, ErrInvalidTransition
}

// terminalState covers DELIVERED, CANCELLED and REJECTED: every transition
// attempt fails.
type terminalState struct{ status Status }

func (t terminalState) Status() Status { return t.status }

func (terminalState) OnAccepted(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (terminalState) OnFulfilled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (terminalState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (terminalState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidTransition
}

func (terminalState) OnRejected(*Order, string) (OrderState, error) {
	return nil, ErrInvalidTransition
}
