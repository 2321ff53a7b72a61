package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStockRecord_SeedsInitialAndBaseline(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 100, 10)
	require.NoError(t, err)

	assert.Equal(t, 100, r.StockLevel)
	assert.Equal(t, 100, r.InitialStock)
	assert.Equal(t, 100, r.BaselineStock)
	assert.Equal(t, 10, r.MinimumStock)
	assert.False(t, r.BaselineUpdatedAt.IsZero())
}

func TestNewStockRecord_RejectsNegativeValues(t *testing.T) {
	_, err := NewStockRecord("p1", "s1", -1, 0)
	assert.ErrorIs(t, err, ErrInvalidStockLevel)

	_, err = NewStockRecord("p1", "s1", 0, -1)
	assert.ErrorIs(t, err, ErrInvalidStockLevel)
}

func TestDeduct(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 10, 0)
	require.NoError(t, err)

	require.NoError(t, r.Deduct(3))
	assert.Equal(t, 7, r.StockLevel)

	// deduction to exactly zero is allowed
	require.NoError(t, r.Deduct(7))
	assert.Equal(t, 0, r.StockLevel)
}

func TestDeduct_FailsInsteadOfClamping(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 5, 0)
	require.NoError(t, err)

	err = r.Deduct(6)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, r.StockLevel, "failed deduction must not change the level")
}

func TestDeduct_RejectsNonPositiveQuantity(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 5, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Deduct(0), ErrInvalidQuantity)
	assert.ErrorIs(t, r.Deduct(-2), ErrInvalidQuantity)
}

func TestRestore(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 5, 0)
	require.NoError(t, err)

	require.NoError(t, r.Restore(3))
	assert.Equal(t, 8, r.StockLevel)
	assert.Equal(t, 5, r.BaselineStock, "restore must not touch the baseline")

	assert.ErrorIs(t, r.Restore(0), ErrInvalidQuantity)
}

func TestRebaseline_MovesLevelAndBaseline(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 100, 0)
	require.NoError(t, err)
	require.NoError(t, r.Deduct(30))

	before := r.BaselineUpdatedAt
	require.NoError(t, r.Rebaseline(150))

	assert.Equal(t, 150, r.StockLevel)
	assert.Equal(t, 150, r.BaselineStock)
	assert.Equal(t, 100, r.InitialStock, "initial stock is immutable")
	assert.True(t, !r.BaselineUpdatedAt.Before(before))
}

func TestSetLevel_KeepsBaseline(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 150, 0)
	require.NoError(t, err)

	require.NoError(t, r.SetLevel(120))
	assert.Equal(t, 120, r.StockLevel)
	assert.Equal(t, 150, r.BaselineStock)

	assert.ErrorIs(t, r.SetLevel(-1), ErrInvalidStockLevel)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		level    int
		baseline int
		percent  float64
		status   Status
	}{
		{"exactly at high boundary", 70, 100, 70.0, StatusHigh},
		{"just below moderate boundary", 39, 100, 39.0, StatusLow},
		{"exactly at moderate boundary", 40, 100, 40.0, StatusModerate},
		{"just below high boundary", 69, 100, 69.0, StatusModerate},
		{"zero baseline reads high", 5, 0, 100.0, StatusHigh},
		{"zero level zero baseline", 0, 0, 100.0, StatusHigh},
		{"zero level", 0, 100, 0.0, StatusLow},
		{"rounds to two decimals", 1, 3, 33.33, StatusLow},
		{"rounds half up", 2, 3, 66.67, StatusModerate},
		{"over the baseline", 120, 100, 120.0, StatusHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, status := Classify(tt.level, tt.baseline)
			assert.InDelta(t, tt.percent, percent, 0.001)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestDecideUpdate(t *testing.T) {
	assert.Equal(t, Rebaseline, DecideUpdate(70, 150))
	assert.Equal(t, PlainUpdate, DecideUpdate(150, 120))
	assert.Equal(t, PlainUpdate, DecideUpdate(100, 100))
	assert.Equal(t, Rebaseline, DecideUpdate(0, 1))
}

func TestClone_IsIndependent(t *testing.T) {
	r, err := NewStockRecord("p1", "s1", 10, 0)
	require.NoError(t, err)

	c := r.Clone()
	require.NoError(t, c.Deduct(5))

	assert.Equal(t, 10, r.StockLevel)
	assert.Equal(t, 5, c.StockLevel)
}
