package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	domorder "github.com/sellerhub/stockengine/internal/domain/order"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/domain/storage"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/stdlib"
)

// Store is a Postgres-backed storage.Store. Each unit of work maps to one
// sqlx transaction; GetForUpdate uses SELECT ... FOR UPDATE so per-product
// serialization comes from row locks.
type Store struct {
	db *sqlx.DB
}

func Open(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", dsn)
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{tx: txx}, nil
}

type tx struct {
	tx *sqlx.Tx
}

func (t *tx) Orders() domorder.Repository  { return &orderRepo{tx: t.tx} }
func (t *tx) Stock() domproduct.Repository { return &stockRepo{tx: t.tx} }

func (t *tx) Commit(ctx context.Context) error {
	_ = ctx
	return t.tx.Commit()
}

func (t *tx) Rollback(ctx context.Context) error {
	_ = ctx
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
