package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
)

type stockRepo struct {
	tx *sqlx.Tx
}

// stockRow keeps db tags out of the domain entity.
type stockRow struct {
	ProductID         string    `db:"product_id"`
	SellerID          string    `db:"seller_id"`
	StockLevel        int       `db:"stock_level"`
	MinimumStock      int       `db:"minimum_stock"`
	InitialStock      int       `db:"initial_stock"`
	BaselineStock     int       `db:"baseline_stock"`
	BaselineUpdatedAt time.Time `db:"baseline_updated_at"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r stockRow) toDomain() *domproduct.StockRecord {
	return &domproduct.StockRecord{
		ProductID:         r.ProductID,
		SellerID:          r.SellerID,
		StockLevel:        r.StockLevel,
		MinimumStock:      r.MinimumStock,
		InitialStock:      r.InitialStock,
		BaselineStock:     r.BaselineStock,
		BaselineUpdatedAt: r.BaselineUpdatedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toStockRow(rec *domproduct.StockRecord) stockRow {
	return stockRow{
		ProductID:         rec.ProductID,
		SellerID:          rec.SellerID,
		StockLevel:        rec.StockLevel,
		MinimumStock:      rec.MinimumStock,
		InitialStock:      rec.InitialStock,
		BaselineStock:     rec.BaselineStock,
		BaselineUpdatedAt: rec.BaselineUpdatedAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

const stockColumns = `product_id, seller_id, stock_level, minimum_stock, initial_stock, baseline_stock, baseline_updated_at, created_at, updated_at`

func (r *stockRepo) Get(ctx context.Context, productID string) (*domproduct.StockRecord, error) {
	return r.get(ctx, productID, false)
}

func (r *stockRepo) GetForUpdate(ctx context.Context, productID string) (*domproduct.StockRecord, error) {
	return r.get(ctx, productID, true)
}

func (r *stockRepo) get(ctx context.Context, productID string, forUpdate bool) (*domproduct.StockRecord, error) {
	query := `SELECT ` + stockColumns + ` FROM product_stock WHERE product_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row stockRow
	if err := r.tx.GetContext(ctx, &row, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domproduct.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *stockRepo) Insert(ctx context.Context, record *domproduct.StockRecord) error {
	query := `
        INSERT INTO product_stock (` + stockColumns + `)
        VALUES (
            :product_id, :seller_id, :stock_level, :minimum_stock, :initial_stock,
            :baseline_stock, :baseline_updated_at, :created_at, :updated_at
        )
        ON CONFLICT (product_id) DO NOTHING
    `
	res, err := r.tx.NamedExecContext(ctx, query, toStockRow(record))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domproduct.ErrConflict
	}
	return nil
}

func (r *stockRepo) Update(ctx context.Context, record *domproduct.StockRecord) error {
	query := `
        UPDATE product_stock SET
            stock_level = :stock_level,
            baseline_stock = :baseline_stock,
            baseline_updated_at = :baseline_updated_at,
            updated_at = :updated_at
        WHERE product_id = :product_id
    `
	res, err := r.tx.NamedExecContext(ctx, query, toStockRow(record))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domproduct.ErrNotFound
	}
	return nil
}

func (r *stockRepo) Delete(ctx context.Context, productID string) error {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM product_stock WHERE product_id = $1`, productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domproduct.ErrNotFound
	}
	return nil
}
