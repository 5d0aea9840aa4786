// Package expense records operating costs feeding the financial reports.
package expense

import (
	"fmt"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Type classifies an expense for profit and loss purposes.
type Type string

const (
	// TypeDirect covers costs tied to producing orders, e.g. consumables.
	TypeDirect Type = "DIRECT"
	// TypeIndirect covers overhead, e.g. rent and utilities.
	TypeIndirect Type = "INDIRECT"
)

// ParseType validates a raw expense type string.
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case TypeDirect:
		return TypeDirect, nil
	case TypeIndirect:
		return TypeIndirect, nil
	default:
		return "", fmt.Errorf("unknown expense type %q: %w", raw, httpx.ErrValidation)
	}
}

// Expense is one recorded cost.
type Expense struct {
	ID          int64     `json:"id"`
	Type        Type      `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	IncurredAt  time.Time `json:"incurredAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MonthlySummary totals one month's expenses by type.
type MonthlySummary struct {
	Month    string  `json:"month"`
	Direct   float64 `json:"direct"`
	Indirect float64 `json:"indirect"`
	Total    float64 `json:"total"`
}

var ErrExpenseNotFound = fmt.Errorf("expense not found: %w", httpx.ErrNotFound)
