// Package sales implements the sale order lifecycle from draft to delivery.
package sales

import (
	"fmt"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Status is a sale order lifecycle state.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusConfirmed        Status = "CONFIRMED"
	StatusInProduction     Status = "IN_PRODUCTION"
	StatusReadyForDispatch Status = "READY_FOR_DISPATCH"
	StatusDispatched       Status = "DISPATCHED"
	StatusDelivered        Status = "DELIVERED"
)

// transitions is the single source of truth for allowed status moves. Every
// call site that changes a status goes through CanTransitionTo.
var transitions = map[Status][]Status{
	StatusDraft:            {StatusConfirmed},
	StatusConfirmed:        {StatusInProduction},
	StatusInProduction:     {StatusReadyForDispatch},
	StatusReadyForDispatch: {StatusDispatched},
	StatusDispatched:       {StatusDelivered},
	StatusDelivered:        {},
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
		return "", fmt.Errorf("unknown sale order status %q: %w", raw, httpx.ErrValidation)
	}
	return s, nil
}

// Item is one order line. Unit price and discount are captured at creation so
// later catalog price changes do not rewrite history.
type Item struct {
	ID          int64   `json:"id"`
	VariantID   int64   `json:"variantId"`
	SKU         string  `json:"sku"`
	Qty         int     `json:"qty"`
	UnitPrice   float64 `json:"unitPrice"`
	DiscountPct float64 `json:"discountPct"`
	IsRx        bool    `json:"isRx"`
}

// EffectivePrice is the unit price after discount.
func (i Item) EffectivePrice() float64 {
	return i.UnitPrice * (1 - i.DiscountPct/100)
}

// LineTotal is the discounted line amount.
func (i Item) LineTotal() float64 {
	return i.EffectivePrice() * float64(i.Qty)
}

// Order is a sale order with its lines.
type Order struct {
	ID            int64      `json:"id"`
	Number        string     `json:"number"`
	CustomerID    int64      `json:"customerId"`
	CustomerName  string     `json:"customerName,omitempty"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	Courier       string     `json:"courier,omitempty"`
	TrackingCode  string     `json:"trackingCode,omitempty"`
	TotalAmount   float64    `json:"totalAmount"`
	StockDeducted bool       `json:"stockDeducted"`
	Items         []Item     `json:"items,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"-"`
}

// HasRxItem reports whether any line is a prescription lens.
func (o Order) HasRxItem() bool {
	for _, item := range o.Items {
		if item.IsRx {
			return true
		}
	}
	return false
}

var (
	ErrOrderNotFound = fmt.Errorf("sale order not found: %w", httpx.ErrNotFound)
	// ErrOrderLocked covers edits and deletes attempted after the order left
	// its editable window.
	ErrOrderLocked = fmt.Errorf("sale order no longer editable: %w", httpx.ErrConflict)
)
