// Package stock maintains on-hand inventory counters for lens variants.
package stock

import (
	"fmt"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Level is the on-hand counter for a single lens variant.
type Level struct {
	VariantID int64  `json:"variantId"`
	SKU       string `json:"sku,omitempty"`
	OnHand    int    `json:"onHand"`
	MinStock  int    `json:"minStock"`
}

var (
	// ErrLevelNotFound indicates no stock row exists for a variant.
	ErrLevelNotFound = fmt.Errorf("stock level not found: %w", httpx.ErrNotFound)
	// ErrInvalidQuantity occurs when a mutation quantity is not positive.
	ErrInvalidQuantity = fmt.Errorf("stock quantity must be positive: %w", httpx.ErrValidation)
)
