package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-erp/opticore-erp/internal/platform/db"
	"github.com/opticore-erp/opticore-erp/internal/sequence"
	"github.com/opticore-erp/opticore-erp/internal/stock"
)

// Repository provides Postgres access to sale orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes sale order mutations bound to one transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, at time.Time) (string, error)
	Insert(ctx context.Context, order *Order) error
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateHeader(ctx context.Context, order Order) error
	UpdateStatus(ctx context.Context, id int64, status Status, stockDeducted bool) error
	UpdateDispatchInfo(ctx context.Context, id int64, courier, trackingCode string) error
	ReplaceItems(ctx context.Context, orderID int64, items []Item) error
	DecrementStock(ctx context.Context, variantID int64, qty int) error
	SoftDelete(ctx context.Context, id int64) error
	HasDispatch(ctx context.Context, orderID int64) (bool, error)
	HasInvoice(ctx context.Context, orderID int64) (bool, error)
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
	return sequence.Next(ctx, t.tx, sequence.FamilySaleOrder, sequence.YearPrefix(at))
}

func (t *txRepository) Insert(ctx context.Context, order *Order) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO sale_orders (number, customer_id, status, notes, total_amount, stock_deducted)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`,
		order.Number, order.CustomerID, order.Status, order.Notes, order.TotalAmount, order.StockDeducted).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sales: insert order: %w", err)
	}
	return t.insertItems(ctx, order.ID, order.Items)
}

func (t *txRepository) insertItems(ctx context.Context, orderID int64, items []Item) error {
	for i := range items {
		err := t.tx.QueryRow(ctx, `INSERT INTO sale_order_items (sale_order_id, variant_id, qty, unit_price, discount_pct)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			orderID, items[i].VariantID, items[i].Qty, items[i].UnitPrice, items[i].DiscountPct).
			Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("sales: insert item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := t.tx.QueryRow(ctx, `SELECT id, number, customer_id, status, COALESCE(notes, ''), COALESCE(courier, ''),
COALESCE(tracking_code, ''), total_amount, stock_deducted, created_at, updated_at
FROM sale_orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).
		Scan(&order.ID, &order.Number, &order.CustomerID, &order.Status, &order.Notes, &order.Courier,
			&order.TrackingCode, &order.TotalAmount, &order.StockDeducted, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("sales: get order for update: %w", err)
	}
	items, err := loadItems(ctx, t.tx, order.ID)
	if err != nil {
		return Order{}, err
	}
	order.Items = items
	return order, nil
}

func (t *txRepository) UpdateHeader(ctx context.Context, order Order) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET notes = $2, total_amount = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, order.ID, order.Notes, order.TotalAmount)
	if err != nil {
		return fmt.Errorf("sales: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, stockDeducted bool) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET status = $2, stock_deducted = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, id, status, stockDeducted)
	if err != nil {
		return fmt.Errorf("sales: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) UpdateDispatchInfo(ctx context.Context, id int64, courier, trackingCode string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET courier = $2, tracking_code = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, id, courier, trackingCode)
	if err != nil {
		return fmt.Errorf("sales: update dispatch info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) ReplaceItems(ctx context.Context, orderID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sale_order_items WHERE sale_order_id = $1`, orderID); err != nil {
		return fmt.Errorf("sales: clear items: %w", err)
	}
	return t.insertItems(ctx, orderID, items)
}

func (t *txRepository) DecrementStock(ctx context.Context, variantID int64, qty int) error {
	return stock.Decrement(ctx, t.tx, variantID, qty)
}

func (t *txRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET deleted_at = NOW(), updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("sales: soft delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) HasDispatch(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dispatches WHERE sale_order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sales: dispatch exists: %w", err)
	}
	return exists, nil
}

func (t *txRepository) HasInvoice(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoice_sale_orders WHERE sale_order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sales: invoice exists: %w", err)
	}
	return exists, nil
}

func loadItems(ctx context.Context, q pgx.Tx, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT i.id, i.variant_id, lv.sku, i.qty, i.unit_price, i.discount_pct, lv.is_rx
FROM sale_order_items i
JOIN lens_variants lv ON lv.id = i.variant_id
WHERE i.sale_order_id = $1
ORDER BY i.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sales: load items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Qty, &item.UnitPrice, &item.DiscountPct, &item.IsRx); err != nil {
			return nil, fmt.Errorf("sales: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns one sale order with its lines.
func (r *Repository) GetByID(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT so.id, so.number, so.customer_id, c.name, so.status, COALESCE(so.notes, ''),
COALESCE(so.courier, ''), COALESCE(so.tracking_code, ''), so.total_amount, so.stock_deducted, so.created_at, so.updated_at
FROM sale_orders so
JOIN customers c ON c.id = so.customer_id
WHERE so.id = $1 AND so.deleted_at IS NULL`, id).
		Scan(&order.ID, &order.Number, &order.CustomerID, &order.CustomerName, &order.Status, &order.Notes,
			&order.Courier, &order.TrackingCode, &order.TotalAmount, &order.StockDeducted, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("sales: get order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT i.id, i.variant_id, lv.sku, i.qty, i.unit_price, i.discount_pct, lv.is_rx
FROM sale_order_items i
JOIN lens_variants lv ON lv.id = i.variant_id
WHERE i.sale_order_id = $1
ORDER BY i.id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("sales: load items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Qty, &item.UnitPrice, &item.DiscountPct, &item.IsRx); err != nil {
			return Order{}, fmt.Errorf("sales: scan item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// ListFilter narrows sale order listings.
type ListFilter struct {
	Status     Status
	CustomerID int64
	Limit      int
	Offset     int
}

// List returns sale order headers with the total row count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM sale_orders so JOIN customers c ON c.id = so.customer_id WHERE so.deleted_at IS NULL`)
	args := []any{}
	idx := 1
	if filter.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND so.status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.CustomerID != 0 {
		sb.WriteString(fmt.Sprintf(" AND so.customer_id = $%d", idx))
		args = append(args, filter.CustomerID)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sales: count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT so.id, so.number, so.customer_id, c.name, so.status, so.total_amount, so.stock_deducted, so.created_at, so.updated_at
%s ORDER BY so.created_at DESC, so.id DESC LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sales: list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.Number, &order.CustomerID, &order.CustomerName, &order.Status,
			&order.TotalAmount, &order.StockDeducted, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("sales: scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}
