package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs read-only aggregation queries for the reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesTotal sums invoice totals issued in [from, to).
func (r *Repository) SalesTotal(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM invoices
WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("finance: sales total: %w", err)
	}
	return total, nil
}

// PaymentsTotal sums payments received in [from, to).
func (r *Repository) PaymentsTotal(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
WHERE paid_at >= $1 AND paid_at < $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("finance: payments total: %w", err)
	}
	return total, nil
}

// PurchasesTotal sums non-cancelled purchase order values raised in [from, to).
func (r *Repository) PurchasesTotal(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_value), 0) FROM purchase_orders
WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2`, from, to).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("finance: purchases total: %w", err)
	}
	return total, nil
}

// ExpenseTotals sums expenses by type incurred in [from, to).
func (r *Repository) ExpenseTotals(ctx context.Context, from, to time.Time) (direct, indirect float64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE type = 'DIRECT'), 0),
COALESCE(SUM(amount) FILTER (WHERE type = 'INDIRECT'), 0)
FROM expenses WHERE incurred_at >= $1 AND incurred_at < $2`, from, to).
		Scan(&direct, &indirect)
	if err != nil {
		return 0, 0, fmt.Errorf("finance: expense totals: %w", err)
	}
	return direct, indirect, nil
}

// OpenInvoices returns every invoice with an outstanding balance and its age
// in days as of now.
func (r *Repository) OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.total_amount,
COALESCE(SUM(p.amount), 0) AS paid,
GREATEST(0, EXTRACT(DAY FROM $1::timestamptz - i.created_at))::int AS age_days
FROM invoices i
LEFT JOIN payments p ON p.invoice_id = i.id
GROUP BY i.id
HAVING i.total_amount - COALESCE(SUM(p.amount), 0) > 0`, asOf)
	if err != nil {
		return nil, fmt.Errorf("finance: open invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]OpenInvoice, 0)
	for rows.Next() {
		var inv OpenInvoice
		if err := rows.Scan(&inv.Total, &inv.Paid, &inv.AgeDays); err != nil {
			return nil, fmt.Errorf("finance: scan open invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
