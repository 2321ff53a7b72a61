package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	domorder "github.com/sellerhub/stockengine/internal/domain/order"
)

type orderRepo struct {
	tx *sqlx.Tx
}

type orderRow struct {
	ID              string     `db:"id"`
	ProductID       string     `db:"product_id"`
	BuyerID         string     `db:"buyer_id"`
	SellerID        string     `db:"seller_id"`
	Quantity        int        `db:"quantity"`
	Status          string     `db:"status"`
	RejectionReason *string    `db:"rejection_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}

func (r orderRow) toDomain() *domorder.Order {
	o := &domorder.Order{
		ID:          r.ID,
		ProductID:   r.ProductID,
		BuyerID:     r.BuyerID,
		SellerID:    r.SellerID,
		Quantity:    r.Quantity,
		Status:      domorder.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.RejectionReason != nil {
		o.RejectionReason = *r.RejectionReason
	}
	return o
}

func toOrderRow(o *domorder.Order) orderRow {
	row := orderRow{
		ID:          o.ID,
		ProductID:   o.ProductID,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		Quantity:    o.Quantity,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CompletedAt: o.CompletedAt,
	}
	if o.RejectionReason != "" {
		reason := o.RejectionReason
		row.RejectionReason = &reason
	}
	return row
}

const orderColumns = `id, product_id, buyer_id, seller_id, quantity, status, rejection_reason, created_at, updated_at, completed_at`

func (r *orderRepo) Insert(ctx context.Context, o *domorder.Order) error {
	query := `
        INSERT INTO orders (` + orderColumns + `)
        VALUES (
            :id, :product_id, :buyer_id, :seller_id, :quantity, :status,
            :rejection_reason, :created_at, :updated_at, :completed_at
        )
        ON CONFLICT (id) DO NOTHING
    `
	res, err := r.tx.NamedExecContext(ctx, query, toOrderRow(o))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domorder.ErrConflict
	}
	return nil
}

func (r *orderRepo) Get(ctx context.Context, id string) (*domorder.Order, error) {
	return r.get(ctx, id, false)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (*domorder.Order, error) {
	return r.get(ctx, id, true)
}

func (r *orderRepo) get(ctx context.Context, id string, forUpdate bool) (*domorder.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row orderRow
	if err := r.tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domorder.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *orderRepo) Update(ctx context.Context, o *domorder.Order) error {
	query := `
        UPDATE orders SET
            status = :status,
            rejection_reason = :rejection_reason,
            updated_at = :updated_at,
            completed_at = :completed_at
        WHERE id = :id
    `
	res, err := r.tx.NamedExecContext(ctx, query, toOrderRow(o))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domorder.ErrNotFound
	}
	return nil
}
