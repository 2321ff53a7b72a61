package order

// IDGenerator produces new order identifiers.
type IDGenerator interface {
	NewID() string
}
