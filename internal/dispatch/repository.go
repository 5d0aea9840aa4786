package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-erp/opticore-erp/internal/platform/db"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/sequence"
)

// Repository provides Postgres access to dispatches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes dispatch mutations bound to one transaction. Creating
// and delivering a shipment also moves the owning sale order, so both writes
// share the transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, at time.Time) (string, error)
	Insert(ctx context.Context, d *Dispatch) error
	GetForUpdate(ctx context.Context, id int64) (Dispatch, error)
	UpdateStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error
	ExistsForSaleOrder(ctx context.Context, saleOrderID int64) (bool, error)
	SaleOrderStatus(ctx context.Context, saleOrderID int64) (sales.Status, error)
	AdvanceSaleOrder(ctx context.Context, saleOrderID int64, status sales.Status) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (t *txRepository) NextNumber(ctx context.Context, at time.Time) (string, error) {
	return sequence.Next(ctx, t.tx, sequence.FamilyDispatch, sequence.MonthPrefix(at))
}

func (t *txRepository) Insert(ctx context.Context, d *Dispatch) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO dispatches (number, sale_order_id, courier, tracking_code, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`,
		d.Number, d.SaleOrderID, d.Courier, d.TrackingCode, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("dispatch: insert: %w", err)
	}
	return nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Dispatch, error) {
	var d Dispatch
	err := t.tx.QueryRow(ctx, `SELECT id, number, sale_order_id, courier, COALESCE(tracking_code, ''), status, delivered_at, created_at, updated_at
FROM dispatches WHERE id = $1 FOR UPDATE`, id).
		Scan(&d.ID, &d.Number, &d.SaleOrderID, &d.Courier, &d.TrackingCode, &d.Status, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispatch{}, ErrDispatchNotFound
		}
		return Dispatch{}, fmt.Errorf("dispatch: get for update: %w", err)
	}
	return d, nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE dispatches SET status = $2, delivered_at = COALESCE($3, delivered_at), updated_at = NOW()
WHERE id = $1`, id, status, deliveredAt)
	if err != nil {
		return fmt.Errorf("dispatch: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDispatchNotFound
	}
	return nil
}

func (t *txRepository) ExistsForSaleOrder(ctx context.Context, saleOrderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dispatches WHERE sale_order_id = $1)`, saleOrderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dispatch: exists for sale order: %w", err)
	}
	return exists, nil
}

func (t *txRepository) SaleOrderStatus(ctx context.Context, saleOrderID int64) (sales.Status, error) {
	var status sales.Status
	err := t.tx.QueryRow(ctx, `SELECT status FROM sale_orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, saleOrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", sales.ErrOrderNotFound
		}
		return "", fmt.Errorf("dispatch: sale order status: %w", err)
	}
	return status, nil
}

func (t *txRepository) AdvanceSaleOrder(ctx context.Context, saleOrderID int64, status sales.Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, saleOrderID, status)
	if err != nil {
		return fmt.Errorf("dispatch: advance sale order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sales.ErrOrderNotFound
	}
	return nil
}

// GetByID returns one dispatch.
func (r *Repository) GetByID(ctx context.Context, id int64) (Dispatch, error) {
	var d Dispatch
	err := r.pool.QueryRow(ctx, `SELECT d.id, d.number, d.sale_order_id, so.number, d.courier, COALESCE(d.tracking_code, ''),
d.status, d.delivered_at, d.created_at, d.updated_at
FROM dispatches d
JOIN sale_orders so ON so.id = d.sale_order_id
WHERE d.id = $1`, id).
		Scan(&d.ID, &d.Number, &d.SaleOrderID, &d.SaleOrderNumber, &d.Courier, &d.TrackingCode,
			&d.Status, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispatch{}, ErrDispatchNotFound
		}
		return Dispatch{}, fmt.Errorf("dispatch: get: %w", err)
	}
	return d, nil
}

// ListFilter narrows dispatch listings.
type ListFilter struct {
	Status      Status
	SaleOrderID int64
	Limit       int
	Offset      int
}

// List returns dispatches with the total row count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Dispatch, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM dispatches d JOIN sale_orders so ON so.id = d.sale_order_id WHERE 1=1`)
	args := []any{}
	idx := 1
	if filter.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND d.status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.SaleOrderID != 0 {
		sb.WriteString(fmt.Sprintf(" AND d.sale_order_id = $%d", idx))
		args = append(args, filter.SaleOrderID)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("dispatch: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT d.id, d.number, d.sale_order_id, so.number, d.courier, COALESCE(d.tracking_code, ''),
d.status, d.delivered_at, d.created_at, d.updated_at
%s ORDER BY d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("dispatch: list: %w", err)
	}
	defer rows.Close()

	dispatches := make([]Dispatch, 0)
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.ID, &d.Number, &d.SaleOrderID, &d.SaleOrderNumber, &d.Courier, &d.TrackingCode,
			&d.Status, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("dispatch: scan: %w", err)
		}
		dispatches = append(dispatches, d)
	}
	return dispatches, total, rows.Err()
}
