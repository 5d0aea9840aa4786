// Package dispatch tracks shipments from the workshop to the customer.
package dispatch

import (
	"fmt"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Status is a dispatch lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
)

// transitions is the single source of truth for allowed status moves.
var transitions = map[Status][]Status{
	StatusPending:   {StatusInTransit},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {},
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
		return "", fmt.Errorf("unknown dispatch status %q: %w", raw, httpx.ErrValidation)
	}
	return s, nil
}

// Dispatch is one shipment for one sale order.
type Dispatch struct {
	ID              int64      `json:"id"`
	Number          string     `json:"number"`
	SaleOrderID     int64      `json:"saleOrderId"`
	SaleOrderNumber string     `json:"saleOrderNumber,omitempty"`
	Courier         string     `json:"courier"`
	TrackingCode    string     `json:"trackingCode,omitempty"`
	Status          Status     `json:"status"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

var (
	ErrDispatchNotFound = fmt.Errorf("dispatch not found: %w", httpx.ErrNotFound)
	// ErrAlreadyDispatched occurs when a sale order already has its shipment.
	ErrAlreadyDispatched = fmt.Errorf("sale order already dispatched: %w", httpx.ErrConflict)
	// ErrOrderNotReady occurs when the sale order has not reached
	// READY_FOR_DISPATCH.
	ErrOrderNotReady = fmt.Errorf("sale order not ready for dispatch: %w", httpx.ErrConflict)
)
