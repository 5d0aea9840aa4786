package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// DBTX is the slice of pgx.Tx the ledger helpers need. Callers pass their own
// open transaction so the stock mutation commits together with the status
// change that triggered it.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// getForUpdate locks and reads the stock row for a variant.
func getForUpdate(ctx context.Context, db DBTX, variantID int64) (Level, error) {
	var level Level
	err := db.QueryRow(ctx, `SELECT variant_id, on_hand, min_stock FROM stock_levels WHERE variant_id = $1 FOR UPDATE`, variantID).
		Scan(&level.VariantID, &level.OnHand, &level.MinStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, ErrLevelNotFound
		}
		return Level{}, err
	}
	return level, nil
}

func upsert(ctx context.Context, db DBTX, level Level) error {
	_, err := db.Exec(ctx, `INSERT INTO stock_levels (variant_id, on_hand, min_stock) VALUES ($1, $2, $3)
ON CONFLICT (variant_id) DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()`,
		level.VariantID, level.OnHand, level.MinStock)
	return err
}

// Decrement reduces on-hand stock, failing when the variant would go
// negative. A missing stock row counts as zero on hand.
func Decrement(ctx context.Context, db DBTX, variantID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := getForUpdate(ctx, db, variantID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return err
	}
	if errors.Is(err, ErrLevelNotFound) {
		level = Level{VariantID: variantID}
	}
	if level.OnHand < qty {
		return &httpx.InsufficientStockError{VariantID: variantID, Requested: qty, Available: level.OnHand}
	}
	level.OnHand -= qty
	return upsert(ctx, db, level)
}

// Increment raises on-hand stock, creating the row when missing. There is no
// upper bound.
func Increment(ctx context.Context, db DBTX, variantID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, err := getForUpdate(ctx, db, variantID)
	if err != nil && !errors.Is(err, ErrLevelNotFound) {
		return err
	}
	if errors.Is(err, ErrLevelNotFound) {
		level = Level{VariantID: variantID}
	}
	level.OnHand += qty
	return upsert(ctx, db, level)
}
