package expense

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides Postgres access to expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists one expense.
func (r *Repository) Insert(ctx context.Context, e *Expense) error {
	err := r.pool.QueryRow(ctx, `INSERT INTO expenses (type, category, description, amount, incurred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`, e.Type, e.Category, e.Description, e.Amount, e.IncurredAt).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("expense: insert: %w", err)
	}
	return nil
}

// ListFilter narrows expense listings.
type ListFilter struct {
	Type   Type
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// List returns expenses with the total row count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Expense, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM expenses WHERE 1=1`)
	args := []any{}
	idx := 1
	if filter.Type != "" {
		sb.WriteString(fmt.Sprintf(" AND type = $%d", idx))
		args = append(args, filter.Type)
		idx++
	}
	if !filter.From.IsZero() {
		sb.WriteString(fmt.Sprintf(" AND incurred_at >= $%d", idx))
		args = append(args, filter.From)
		idx++
	}
	if !filter.To.IsZero() {
		sb.WriteString(fmt.Sprintf(" AND incurred_at < $%d", idx))
		args = append(args, filter.To)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("expense: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, type, category, COALESCE(description, ''), amount, incurred_at, created_at
%s ORDER BY incurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("expense: list: %w", err)
	}
	defer rows.Close()

	expenses := make([]Expense, 0)
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Type, &e.Category, &e.Description, &e.Amount, &e.IncurredAt, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("expense: scan: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}

// SumByType totals expenses per type in [from, to).
func (r *Repository) SumByType(ctx context.Context, from, to time.Time) (direct, indirect float64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE type = 'DIRECT'), 0),
COALESCE(SUM(amount) FILTER (WHERE type = 'INDIRECT'), 0)
FROM expenses WHERE incurred_at >= $1 AND incurred_at < $2`, from, to).
		Scan(&direct, &indirect)
	if err != nil {
		return 0, 0, fmt.Errorf("expense: sum by type: %w", err)
	}
	return direct, indirect, nil
}
