// Package purchasing implements purchase orders and goods receipt.
package purchasing

import (
	"fmt"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Status is a purchase order lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusOrdered   Status = "ORDERED"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the single source of truth for allowed status moves.
var transitions = map[Status][]Status{
	StatusPending:   {StatusOrdered, StatusCancelled},
	StatusOrdered:   {StatusReceived, StatusCancelled},
	StatusReceived:  {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether next is a legal move from s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("unknown purchase order status %q: %w", raw, httpx.ErrValidation)
	}
	return s, nil
}

// Item is one purchase order line.
type Item struct {
	ID        int64   `json:"id"`
	VariantID int64   `json:"variantId"`
	SKU       string  `json:"sku"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unitPrice"`
}

// LineTotal is the line amount.
func (i Item) LineTotal() float64 {
	return i.UnitPrice * float64(i.Qty)
}

// Order is a purchase order with its lines. SaleOrderID links back to the
// sale order the purchase fulfills, when there is one.
type Order struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	VendorID    int64      `json:"vendorId"`
	VendorName  string     `json:"vendorName,omitempty"`
	SaleOrderID *int64     `json:"saleOrderId,omitempty"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	TotalValue  float64    `json:"totalValue"`
	Items       []Item     `json:"items,omitempty"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

var ErrOrderNotFound = fmt.Errorf("purchase order not found: %w", httpx.ErrNotFound)
