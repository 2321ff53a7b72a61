package product

import "math"

type Status string

const (
	StatusLow      Status = "LOW"
	StatusModerate Status = "MODERATE"
	StatusHigh     Status = "HIGH"
)

// Classify maps the current level against the baseline to a percentage
// (two decimals) and a three-tier status. A zero baseline counts as 100%
// so a freshly registered product with no stock reads HIGH instead of
// dividing by zero. Computed at read time, never persisted.
func Classify(stockLevel, baselineStock int) (float64, Status) {
	percentage := 100.0
	if baselineStock != 0 {
		percentage = math.Round(float64(stockLevel)/float64(baselineStock)*100*100) / 100
	}

	switch {
	case percentage < 40:
		return percentage, StatusLow
	case percentage < 70:
		return percentage, StatusModerate
	default:
		return percentage, StatusHigh
	}
}

// UpdateKind is the outcome of the restock decision for a seller stock edit.
type UpdateKind int

const (
	// PlainUpdate changes the level only; the baseline stays.
	PlainUpdate UpdateKind = iota
	// Rebaseline moves the baseline to the new level as well.
	Rebaseline
)

// DecideUpdate classifies a seller stock edit. An increase means the seller
// added inventory, so the baseline follows; a decrease or unchanged value is
// a plain correction.
func DecideUpdate(oldLevel, newLevel int) UpdateKind {
	if newLevel > oldLevel {
		return Rebaseline
	}
	return PlainUpdate
}
