package product

import "time"

// StockChangedEvent is emitted after any committed stock mutation. Consumers
// include the low-stock watcher and out-of-scope collaborators such as the
// notification service.
type StockChangedEvent struct {
	ProductID    string
	OldLevel     int
	NewLevel     int
	MinimumStock int
	Rebaselined  bool
	OccurredAt   time.Time
}

func (StockChangedEvent) EventName() string { return "stock.changed" }

func NewStockChangedEvent(r *StockRecord, oldLevel int, rebaselined bool) StockChangedEvent {
	return StockChangedEvent{
		ProductID:    r.ProductID,
		OldLevel:     oldLevel,
		NewLevel:     r.StockLevel,
		MinimumStock: r.MinimumStock,
		Rebaselined:  rebaselined,
		OccurredAt:   time.Now().UTC(),
	}
}
