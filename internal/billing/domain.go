// Package billing issues invoices over delivered sale orders and records
// customer payments against them.
package billing

import (
	"fmt"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Payment is one append-only entry against an invoice.
type Payment struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoiceId"`
	Amount    float64   `json:"amount"`
	Mode      string    `json:"mode"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paidAt"`
}

// Invoice is immutable after creation except for appended payments.
type Invoice struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	CustomerID   int64     `json:"customerId"`
	CustomerName string    `json:"customerName,omitempty"`
	TotalAmount  float64   `json:"totalAmount"`
	SaleOrderIDs []int64   `json:"saleOrderIds"`
	Payments     []Payment `json:"payments,omitempty"`
	TotalPaid    float64   `json:"totalPaid"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Balance is the unpaid remainder.
func (i Invoice) Balance() float64 {
	return i.TotalAmount - i.TotalPaid
}

// SettlementStatus derives PAID or PENDING from the balance.
func (i Invoice) SettlementStatus() string {
	if i.Balance() <= 0 {
		return "PAID"
	}
	return "PENDING"
}

// LedgerEntry is one invoice line in a customer's ledger.
type LedgerEntry struct {
	InvoiceID int64     `json:"invoiceId"`
	Number    string    `json:"number"`
	Total     float64   `json:"total"`
	TotalPaid float64   `json:"totalPaid"`
	Balance   float64   `json:"balance"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	ErrInvoiceNotFound = fmt.Errorf("invoice not found: %w", httpx.ErrNotFound)
	// ErrOrderAlreadyInvoiced occurs when a sale order already belongs to an
	// invoice.
	ErrOrderAlreadyInvoiced = fmt.Errorf("sale order already invoiced: %w", httpx.ErrConflict)
	// ErrOverpayment occurs when a payment exceeds the open balance.
	ErrOverpayment = fmt.Errorf("payment exceeds open balance: %w", httpx.ErrValidation)
)
