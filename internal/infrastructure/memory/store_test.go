package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domorder "github.com/sellerhub/stockengine/internal/domain/order"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
)

func seedStock(t *testing.T, s *Store, productID string, level int) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	record, err := domproduct.NewStockRecord(productID, "seller", level, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Stock().Insert(ctx, record))
	require.NoError(t, tx.Commit(ctx))
}

func TestCommit_MakesWritesVisible(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	record, err := tx.Stock().GetForUpdate(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, record.Deduct(4))
	require.NoError(t, tx.Stock().Update(ctx, record))
	require.NoError(t, tx.Commit(ctx))

	read, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = read.Rollback(ctx) }()
	got, err := read.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.StockLevel)
}

func TestRollback_DiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	record, err := tx.Stock().GetForUpdate(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, record.Deduct(4))
	require.NoError(t, tx.Stock().Update(ctx, record))
	require.NoError(t, tx.Rollback(ctx))

	read, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = read.Rollback(ctx) }()
	got, err := read.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.StockLevel)
}

func TestRollback_AfterCommitIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	record, err := tx.Stock().GetForUpdate(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, record.SetLevel(3))
	require.NoError(t, tx.Stock().Update(ctx, record))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	read, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = read.Rollback(ctx) }()
	got, err := read.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockLevel)
}

func TestTx_SeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := domproduct.NewStockRecord("p1", "seller", 5, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Stock().Insert(ctx, record))

	got, err := tx.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockLevel)

	// not visible outside before commit
	other, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = other.Rollback(ctx) }()
	_, err = other.Stock().Get(ctx, "p1")
	assert.ErrorIs(t, err, domproduct.ErrNotFound)
}

func TestInsert_DuplicateProductConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := domproduct.NewStockRecord("p1", "other", 1, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.Stock().Insert(ctx, record), domproduct.ErrConflict)
}

func TestDelete_RemovesOnCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Stock().Delete(ctx, "p1"))

	// the deleting transaction already sees it gone
	_, err = tx.Stock().Get(ctx, "p1")
	assert.ErrorIs(t, err, domproduct.ErrNotFound)
	require.NoError(t, tx.Commit(ctx))

	read, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = read.Rollback(ctx) }()
	_, err = read.Stock().Get(ctx, "p1")
	assert.ErrorIs(t, err, domproduct.ErrNotFound)
}

func TestClosedTx_RefusesOperations(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	_, err = tx.Stock().Get(ctx, "p1")
	assert.Error(t, err)
	err = tx.Commit(ctx)
	assert.Error(t, err)
}

func TestOrders_InsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	o, err := domorder.New("o1", "buyer", "seller", "p1", 2)
	require.NoError(t, err)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Orders().Insert(ctx, o))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	got, err := tx2.Orders().GetForUpdate(ctx, "o1")
	require.NoError(t, err)
	require.NoError(t, got.Cancel("buyer"))
	require.NoError(t, tx2.Orders().Update(ctx, got))
	require.NoError(t, tx2.Commit(ctx))

	tx3, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx3.Rollback(ctx) }()
	final, err := tx3.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, final.Status)
}

func TestGet_ReturnsClone(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 10)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	got, err := tx.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	got.StockLevel = 0

	again, err := tx.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, again.StockLevel, "mutating a read result must not leak into the store")
}

func TestGetForUpdate_SerializesSameProduct(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedStock(t, s, "p1", 1000)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if err != nil {
				return
			}
			defer func() { _ = tx.Rollback(ctx) }()

			record, err := tx.Stock().GetForUpdate(ctx, "p1")
			if err != nil {
				return
			}
			if err := record.Deduct(10); err != nil {
				return
			}
			if err := tx.Stock().Update(ctx, record); err != nil {
				return
			}
			_ = tx.Commit(ctx)
		}()
	}
	wg.Wait()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	got, err := tx.Stock().Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1000-workers*10, got.StockLevel, "every deduction must land exactly once")
}
