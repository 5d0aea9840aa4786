// Package catalog serves read-only master data lookups for customers,
// vendors and lens variants. Master data maintenance happens upstream.
package catalog

import (
	"fmt"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Customer is a retail or wholesale buyer.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	City  string `json:"city,omitempty"`
}

// Vendor supplies lens variants.
type Vendor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// Variant is a purchasable lens SKU. Rx variants are made to prescription and
// never held in stock.
type Variant struct {
	ID    int64   `json:"id"`
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	IsRx  bool    `json:"isRx"`
}

var (
	ErrCustomerNotFound = fmt.Errorf("customer not found: %w", httpx.ErrNotFound)
	ErrVendorNotFound   = fmt.Errorf("vendor not found: %w", httpx.ErrNotFound)
	ErrVariantNotFound  = fmt.Errorf("lens variant not found: %w", httpx.ErrNotFound)
)
