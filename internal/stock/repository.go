package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opticore-erp/opticore-erp/internal/platform/db"
)

// Repository provides Postgres access to stock levels.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes stock mutations bound to one transaction.
type TxRepository interface {
	Increment(ctx context.Context, variantID int64, qty int) error
	Decrement(ctx context.Context, variantID int64, qty int) error
	Get(ctx context.Context, variantID int64) (Level, error)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Increment(ctx context.Context, variantID int64, qty int) error {
	return Increment(ctx, r.tx, variantID, qty)
}

func (r *txRepository) Decrement(ctx context.Context, variantID int64, qty int) error {
	return Decrement(ctx, r.tx, variantID, qty)
}

func (r *txRepository) Get(ctx context.Context, variantID int64) (Level, error) {
	return getLevel(ctx, r.tx, variantID)
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get returns the stock level for one variant.
func (r *Repository) Get(ctx context.Context, variantID int64) (Level, error) {
	return getLevel(ctx, r.pool, variantID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getLevel(ctx context.Context, q queryRower, variantID int64) (Level, error) {
	var level Level
	err := q.QueryRow(ctx, `SELECT sl.variant_id, lv.sku, sl.on_hand, sl.min_stock
FROM stock_levels sl
JOIN lens_variants lv ON lv.id = sl.variant_id
WHERE sl.variant_id = $1`, variantID).
		Scan(&level.VariantID, &level.SKU, &level.OnHand, &level.MinStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrLevelNotFound
		}
		return Level{}, fmt.Errorf("stock: get level: %w", err)
	}
	return level, nil
}

// ListFilter narrows level listings.
type ListFilter struct {
	LowOnly bool
	Search  string
	Limit   int
	Offset  int
}

// List returns stock levels with the total row count for pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Level, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM stock_levels sl JOIN lens_variants lv ON lv.id = sl.variant_id WHERE 1=1`)
	args := []any{}
	idx := 1
	if filter.LowOnly {
		sb.WriteString(" AND sl.on_hand <= sl.min_stock")
	}
	if filter.Search != "" {
		sb.WriteString(fmt.Sprintf(" AND lv.sku ILIKE $%d", idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("stock: count levels: %w", err)
	}

	query := fmt.Sprintf(`SELECT sl.variant_id, lv.sku, sl.on_hand, sl.min_stock %s ORDER BY lv.sku LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("stock: list levels: %w", err)
	}
	defer rows.Close()

	levels := make([]Level, 0)
	for rows.Next() {
		var level Level
		if err := rows.Scan(&level.VariantID, &level.SKU, &level.OnHand, &level.MinStock); err != nil {
			return nil, 0, fmt.Errorf("stock: scan level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, total, rows.Err()
}
