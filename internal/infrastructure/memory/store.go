package memory

import (
	"context"
	"errors"
	"sync"

	domorder "github.com/sellerhub/stockengine/internal/domain/order"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/domain/storage"
)

var errTxClosed = errors.New("memory: transaction already closed")

// Store is an in-memory storage.Store. Each transaction stages its writes and
// applies them on Commit; GetForUpdate takes a per-key exclusive lock held
// until the transaction ends, so mutations of the same product (or order)
// serialize while different keys proceed in parallel.
type Store struct {
	mu     sync.RWMutex
	stock  map[string]*domproduct.StockRecord
	orders map[string]*domorder.Order
	locks  *keyedLocks
}

func NewStore() *Store {
	return &Store{
		stock:  make(map[string]*domproduct.StockRecord),
		orders: make(map[string]*domorder.Order),
		locks:  newKeyedLocks(),
	}
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	_ = ctx
	return &tx{
		store:         s,
		held:          make(map[string]*sync.Mutex),
		pendingStock:  make(map[string]*stockWrite),
		pendingOrders: make(map[string]*domorder.Order),
	}, nil
}

type stockWrite struct {
	record  *domproduct.StockRecord
	deleted bool
}

type tx struct {
	store         *Store
	done          bool
	held          map[string]*sync.Mutex
	pendingStock  map[string]*stockWrite
	pendingOrders map[string]*domorder.Order
}

func (t *tx) Orders() domorder.Repository  { return &orderRepo{tx: t} }
func (t *tx) Stock() domproduct.Repository { return &stockRepo{tx: t} }

func (t *tx) Commit(ctx context.Context) error {
	_ = ctx
	if t.done {
		return errTxClosed
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	for id, w := range t.pendingStock {
		if w.deleted {
			delete(s.stock, id)
			continue
		}
		s.stock[id] = w.record.Clone()
	}
	for id, o := range t.pendingOrders {
		s.orders[id] = o.Clone()
	}
	s.mu.Unlock()

	t.release()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	_ = ctx
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

func (t *tx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
}

// lock acquires the per-key mutex unless this transaction already holds it.
func (t *tx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.store.locks.get(key)
	m.Lock()
	t.held[key] = m
}

type stockRepo struct{ tx *tx }

func stockKey(productID string) string { return "stock/" + productID }

func (r *stockRepo) Get(ctx context.Context, productID string) (*domproduct.StockRecord, error) {
	_ = ctx
	if r.tx.done {
		return nil, errTxClosed
	}
	return r.tx.currentStock(productID)
}

func (r *stockRepo) GetForUpdate(ctx context.Context, productID string) (*domproduct.StockRecord, error) {
	_ = ctx
	if r.tx.done {
		return nil, errTxClosed
	}
	r.tx.lock(stockKey(productID))
	return r.tx.currentStock(productID)
}

func (r *stockRepo) Insert(ctx context.Context, record *domproduct.StockRecord) error {
	_ = ctx
	if r.tx.done {
		return errTxClosed
	}
	if record == nil || record.ProductID == "" {
		return errors.New("memory: product id is required")
	}
	r.tx.lock(stockKey(record.ProductID))
	if _, err := r.tx.currentStock(record.ProductID); err == nil {
		return domproduct.ErrConflict
	}
	r.tx.pendingStock[record.ProductID] = &stockWrite{record: record.Clone()}
	return nil
}

func (r *stockRepo) Update(ctx context.Context, record *domproduct.StockRecord) error {
	_ = ctx
	if r.tx.done {
		return errTxClosed
	}
	if record == nil || record.ProductID == "" {
		return errors.New("memory: product id is required")
	}
	r.tx.lock(stockKey(record.ProductID))
	if _, err := r.tx.currentStock(record.ProductID); err != nil {
		return err
	}
	r.tx.pendingStock[record.ProductID] = &stockWrite{record: record.Clone()}
	return nil
}

func (r *stockRepo) Delete(ctx context.Context, productID string) error {
	_ = ctx
	if r.tx.done {
		return errTxClosed
	}
	r.tx.lock(stockKey(productID))
	if _, err := r.tx.currentStock(productID); err != nil {
		return err
	}
	r.tx.pendingStock[productID] = &stockWrite{deleted: true}
	return nil
}

// currentStock reads through the staging area first so a transaction sees its
// own writes.
func (t *tx) currentStock(productID string) (*domproduct.StockRecord, error) {
	if w, ok := t.pendingStock[productID]; ok {
		if w.deleted {
			return nil, domproduct.ErrNotFound
		}
		return w.record.Clone(), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	record, ok := t.store.stock[productID]
	if !ok {
		return nil, domproduct.ErrNotFound
	}
	return record.Clone(), nil
}

type orderRepo struct{ tx *tx }

func orderKey(id string) string { return "order/" + id }

func (r *orderRepo) Insert(ctx context.Context, o *domorder.Order) error {
	_ = ctx
	if r.tx.done {
		return errTxClosed
	}
	if o == nil || o.ID == "" {
		return errors.New("memory: order id is required")
	}
	r.tx.lock(orderKey(o.ID))
	if _, err := r.tx.currentOrder(o.ID); err == nil {
		return domorder.ErrConflict
	}
	r.tx.pendingOrders[o.ID] = o.Clone()
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*domorder.Order, error) {
	_ = ctx
	if r.tx.done {
		return nil, errTxClosed
	}
	return r.tx.currentOrder(id)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (*domorder.Order, error) {
	_ = ctx
	if r.tx.done {
		return nil, errTxClosed
	}
	r.tx.lock(orderKey(id))
	return r.tx.currentOrder(id)
}

func (r *orderRepo) Update(ctx context.Context, o *domorder.Order) error {
	_ = ctx
	if r.tx.done {
		return errTxClosed
	}
	if o == nil || o.ID == "" {
		return errors.New("memory: order id is required")
	}
	r.tx.lock(orderKey(o.ID))
	if _, err := r.tx.currentOrder(o.ID); err != nil {
		return err
	}
	r.tx.pendingOrders[o.ID] = o.Clone()
	return nil
}

func (t *tx) currentOrder(id string) (*domorder.Order, error) {
	if o, ok := t.pendingOrders[id]; ok {
		return o.Clone(), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	o, ok := t.store.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	return o.Clone(), nil
}

// keyedLocks hands out one mutex per key, created lazily.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.m[key]
	if !ok {
		m = &sync.Mutex{}
		k.m[key] = m
	}
	return m
}
