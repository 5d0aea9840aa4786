// Package sequence allocates collision-free document numbers.
//
// Numbers are drawn from the doc_counters table with an upsert that
// increments and returns the counter in one statement. The row-level lock
// taken by the update serializes concurrent allocations for the same
// family/prefix, so the caller must run Next on the same transaction as the
// insert that consumes the number.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Families used across the application.
const (
	FamilySaleOrder     = "SO"
	FamilyPurchaseOrder = "PO"
	FamilyDispatch      = "DC"
	FamilyInvoice       = "INV"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next returns the next document number for the family/prefix pair.
func Next(ctx context.Context, q Querier, family, prefix string) (string, error) {
	var value int64
	err := q.QueryRow(ctx, `INSERT INTO doc_counters (family, prefix, value) VALUES ($1, $2, 1)
ON CONFLICT (family, prefix) DO UPDATE SET value = doc_counters.value + 1
RETURNING value`, family, prefix).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("sequence: next %s-%s: %w", family, prefix, err)
	}
	return Format(family, prefix, value), nil
}

// Format renders a document number, e.g. SO-2026-0001.
func Format(family, prefix string, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", family, prefix, value)
}

// YearPrefix returns the yearly counter prefix for a date.
func YearPrefix(t time.Time) string {
	return t.Format("2006")
}

// MonthPrefix returns the monthly counter prefix for a date.
func MonthPrefix(t time.Time) string {
	return t.Format("200601")
}
