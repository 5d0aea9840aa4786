package purchasing

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
	"github.com/opticore-erp/opticore-erp/internal/stock"
)

// Repository provides Postgres access to purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes purchase order mutations bound to one transaction.
// Goods receipt reaches into sale_orders and stock_levels so the whole
// receipt commits or rolls back as one unit.
type TxRepository interface {
	NextNumber(ctx context.Context, at time.Time) (string, error)
	Insert(ctx context.Context, order *Order) error
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error
	IncrementStock(ctx context.Context, variantID int64, qty int) error
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
	return sequence.Next(ctx, t.tx, sequence.FamilyPurchaseOrder, sequence.YearPrefix(at))
}

func (t *txRepository) Insert(ctx context.Context, order *Order) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, vendor_id, sale_order_id, status, notes, total_value)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`,
		order.Number, order.VendorID, order.SaleOrderID, order.Status, order.Notes, order.TotalValue).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("purchasing: insert order: %w", err)
	}
	for i := range order.Items {
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (purchase_order_id, variant_id, qty, unit_price)
VALUES ($1, $2, $3, $4) RETURNING id`,
			order.ID, order.Items[i].VariantID, order.Items[i].Qty, order.Items[i].UnitPrice).
			Scan(&order.Items[i].ID)
		if err != nil {
			return fmt.Errorf("purchasing: insert item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := t.tx.QueryRow(ctx, `SELECT id, number, vendor_id, sale_order_id, status, COALESCE(notes, ''), total_value, received_at, created_at, updated_at
FROM purchase_orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&order.ID, &order.Number, &order.VendorID, &order.SaleOrderID, &order.Status, &order.Notes,
			&order.TotalValue, &order.ReceivedAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("purchasing: get order for update: %w", err)
	}
	items, err := loadItems(ctx, t.tx, order.ID)
	if err != nil {
		return Order{}, err
	}
	order.Items = items
	return order, nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, received_at = COALESCE($3, received_at), updated_at = NOW()
WHERE id = $1`, id, status, receivedAt)
	if err != nil {
		return fmt.Errorf("purchasing: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) IncrementStock(ctx context.Context, variantID int64, qty int) error {
	return stock.Increment(ctx, t.tx, variantID, qty)
}

func (t *txRepository) SaleOrderStatus(ctx context.Context, saleOrderID int64) (sales.Status, error) {
	var status sales.Status
	err := t.tx.QueryRow(ctx, `SELECT status FROM sale_orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, saleOrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", sales.ErrOrderNotFound
		}
		return "", fmt.Errorf("purchasing: sale order status: %w", err)
	}
	return status, nil
}

func (t *txRepository) AdvanceSaleOrder(ctx context.Context, saleOrderID int64, status sales.Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sale_orders SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, saleOrderID, status)
	if err != nil {
		return fmt.Errorf("purchasing: advance sale order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sales.ErrOrderNotFound
	}
	return nil
}

func loadItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]Item, error) {
	rows, err := tx.Query(ctx, `SELECT i.id, i.variant_id, lv.sku, i.qty, i.unit_price
FROM purchase_order_items i
JOIN lens_variants lv ON lv.id = i.variant_id
WHERE i.purchase_order_id = $1
ORDER BY i.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("purchasing: load items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Qty, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("purchasing: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns one purchase order with its lines.
func (r *Repository) GetByID(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT po.id, po.number, po.vendor_id, v.name, po.sale_order_id, po.status, COALESCE(po.notes, ''),
po.total_value, po.received_at, po.created_at, po.updated_at
FROM purchase_orders po
JOIN vendors v ON v.id = po.vendor_id
WHERE po.id = $1`, id).
		Scan(&order.ID, &order.Number, &order.VendorID, &order.VendorName, &order.SaleOrderID, &order.Status,
			&order.Notes, &order.TotalValue, &order.ReceivedAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("purchasing: get order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT i.id, i.variant_id, lv.sku, i.qty, i.unit_price
FROM purchase_order_items i
JOIN lens_variants lv ON lv.id = i.variant_id
WHERE i.purchase_order_id = $1
ORDER BY i.id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("purchasing: load items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.VariantID, &item.SKU, &item.Qty, &item.UnitPrice); err != nil {
			return Order{}, fmt.Errorf("purchasing: scan item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Status   Status
	VendorID int64
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// List returns purchase order headers with the total row count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM purchase_orders po JOIN vendors v ON v.id = po.vendor_id WHERE 1=1`)
	args := []any{}
	idx := 1
	if filter.Status != "" {
		sb.WriteString(fmt.Sprintf(" AND po.status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.VendorID != 0 {
		sb.WriteString(fmt.Sprintf(" AND po.vendor_id = $%d", idx))
		args = append(args, filter.VendorID)
		idx++
	}
	if !filter.From.IsZero() {
		sb.WriteString(fmt.Sprintf(" AND po.created_at >= $%d", idx))
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		sb.WriteString(fmt.Sprintf(" AND po.created_at < $%d", idx))
		args = append(args, filter.To)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("purchasing: count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT po.id, po.number, po.vendor_id, v.name, po.sale_order_id, po.status, po.total_value, po.received_at, po.created_at, po.updated_at
%s ORDER BY po.created_at DESC, po.id DESC LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("purchasing: list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.Number, &order.VendorID, &order.VendorName, &order.SaleOrderID,
			&order.Status, &order.TotalValue, &order.ReceivedAt, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("purchasing: scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}
