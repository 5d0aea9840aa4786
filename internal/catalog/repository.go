package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads master data from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetCustomer returns one customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(phone, ''), COALESCE(city, '') FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, fmt.Errorf("catalog: get customer: %w", err)
	}
	return c, nil
}

// CustomerExists reports whether a customer id is valid.
func (r *Repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: customer exists: %w", err)
	}
	return exists, nil
}

// VendorExists reports whether a vendor id is valid.
func (r *Repository) VendorExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: vendor exists: %w", err)
	}
	return exists, nil
}

// GetVariant returns one lens variant by id.
func (r *Repository) GetVariant(ctx context.Context, id int64) (Variant, error) {
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, price, is_rx FROM lens_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.SKU, &v.Name, &v.Price, &v.IsRx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, ErrVariantNotFound
		}
		return Variant{}, fmt.Errorf("catalog: get variant: %w", err)
	}
	return v, nil
}

// VariantFilter narrows variant listings.
type VariantFilter struct {
	Search string
	RxOnly bool
	Limit  int
	Offset int
}

// ListVariants returns lens variants with the total count for pagination.
func (r *Repository) ListVariants(ctx context.Context, filter VariantFilter) ([]Variant, int, error) {
	var sb strings.Builder
	sb.WriteString(`FROM lens_variants WHERE 1=1`)
	args := []any{}
	idx := 1
	if filter.Search != "" {
		sb.WriteString(fmt.Sprintf(" AND (sku ILIKE $%d OR name ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.RxOnly {
		sb.WriteString(" AND is_rx")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+sb.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count variants: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, sku, name, price, is_rx %s ORDER BY sku LIMIT $%d OFFSET $%d`, sb.String(), idx, idx+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list variants: %w", err)
	}
	defer rows.Close()

	variants := make([]Variant, 0)
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.SKU, &v.Name, &v.Price, &v.IsRx); err != nil {
			return nil, 0, fmt.Errorf("catalog: scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, total, rows.Err()
}
