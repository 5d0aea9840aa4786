package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-erp/opticore-erp/internal/platform/db"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/sequence"
)

// Repository provides Postgres access to invoices and payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InvoiceableOrder is the slice of a sale order the invoice path needs.
type InvoiceableOrder struct {
	ID         int64
	CustomerID int64
	Status     sales.Status
	Total      float64
	Invoiced   bool
}

// TxRepository exposes billing mutations bound to one transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, at time.Time) (string, error)
	GetInvoiceableOrder(ctx context.Context, saleOrderID int64) (InvoiceableOrder, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	LinkSaleOrder(ctx context.Context, invoiceID, saleOrderID int64) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, p *Payment) error
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
	return sequence.Next(ctx, t.tx, sequence.FamilyInvoice, sequence.YearPrefix(at))
}

func (t *txRepository) GetInvoiceableOrder(ctx context.Context, saleOrderID int64) (InvoiceableOrder, error) {
	var order InvoiceableOrder
	err := t.tx.QueryRow(ctx, `SELECT so.id, so.customer_id, so.status, so.total_amount,
EXISTS (SELECT 1 FROM invoice_sale_orders iso WHERE iso.sale_order_id = so.id)
FROM sale_orders so
WHERE so.id = $1 AND so.deleted_at IS NULL
FOR UPDATE OF so`, saleOrderID).
		Scan(&order.ID, &order.CustomerID, &order.Status, &order.Total, &order.Invoiced)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceableOrder{}, sales.ErrOrderNotFound
		}
		return InvoiceableOrder{}, fmt.Errorf("billing: get invoiceable order: %w", err)
	}
	return order, nil
}

func (t *txRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, total_amount)
VALUES ($1, $2, $3)
RETURNING id, created_at`, inv.Number, inv.CustomerID, inv.TotalAmount).
		Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("billing: insert invoice: %w", err)
	}
	return nil
}

func (t *txRepository) LinkSaleOrder(ctx context.Context, invoiceID, saleOrderID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO invoice_sale_orders (invoice_id, sale_order_id) VALUES ($1, $2)`, invoiceID, saleOrderID)
	if err != nil {
		return fmt.Errorf("billing: link sale order: %w", err)
	}
	return nil
}

func (t *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := t.tx.QueryRow(ctx, `SELECT i.id, i.number, i.customer_id, i.total_amount, i.created_at,
COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)
FROM invoices i WHERE i.id = $1 FOR UPDATE`, id).
		Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.TotalAmount, &inv.CreatedAt, &inv.TotalPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("billing: get invoice for update: %w", err)
	}
	return inv, nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p *Payment) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO payments (invoice_id, amount, mode, reference, paid_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, p.InvoiceID, p.Amount, p.Mode, p.Reference, p.PaidAt).
		Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("billing: insert payment: %w", err)
	}
	return nil
}

// GetByID returns one invoice with its payments and linked orders.
func (r *Repository) GetByID(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT i.id, i.number, i.customer_id, c.name, i.total_amount, i.created_at
FROM invoices i
JOIN customers c ON c.id = i.customer_id
WHERE i.id = $1`, id).
		Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.TotalAmount, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("billing: get invoice: %w", err)
	}

	orderRows, err := r.pool.Query(ctx, `SELECT sale_order_id FROM invoice_sale_orders WHERE invoice_id = $1 ORDER BY sale_order_id`, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: load invoice orders: %w", err)
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var soID int64
		if err := orderRows.Scan(&soID); err != nil {
			return Invoice{}, fmt.Errorf("billing: scan invoice order: %w", err)
		}
		inv.SaleOrderIDs = append(inv.SaleOrderIDs, soID)
	}
	if err := orderRows.Err(); err != nil {
		return Invoice{}, err
	}

	payRows, err := r.pool.Query(ctx, `SELECT id, invoice_id, amount, mode, reference, paid_at
FROM payments WHERE invoice_id = $1 ORDER BY paid_at, id`, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: load payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Mode, &p.Reference, &p.PaidAt); err != nil {
			return Invoice{}, fmt.Errorf("billing: scan payment: %w", err)
		}
		inv.Payments = append(inv.Payments, p)
		inv.TotalPaid += p.Amount
	}
	return inv, payRows.Err()
}

// CustomerLedger returns every invoice of one customer with its settlement
// state, newest first.
func (r *Repository) CustomerLedger(ctx context.Context, customerID int64) ([]LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.number, i.total_amount,
COALESCE(SUM(p.amount), 0) AS total_paid, i.created_at
FROM invoices i
LEFT JOIN payments p ON p.invoice_id = i.id
WHERE i.customer_id = $1
GROUP BY i.id
ORDER BY i.created_at DESC, i.id DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("billing: customer ledger: %w", err)
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.InvoiceID, &e.Number, &e.Total, &e.TotalPaid, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("billing: scan ledger entry: %w", err)
		}
		e.Balance = e.Total - e.TotalPaid
		if e.Balance <= 0 {
			e.Status = "PAID"
		} else {
			e.Status = "PENDING"
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
