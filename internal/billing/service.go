package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Invoice, error)
	CustomerLedger(ctx context.Context, customerID int64) ([]LedgerEntry, error)
}

// CatalogPort resolves customers referenced by the ledger.
type CatalogPort interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportCachePort invalidates cached financial reports after a write.
type ReportCachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates invoicing and payments.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
	reports ReportCachePort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, reports ReportCachePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit, reports: reports, logger: logger, now: time.Now}
}

// CreateInput describes a new invoice over one or more delivered orders.
type CreateInput struct {
	SaleOrderIDs []int64
}

// Create issues an invoice. Every order must be DELIVERED, uninvoiced and
// belong to the same customer; the total is the sum of the orders' discounted
// totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if len(input.SaleOrderIDs) == 0 {
		return Invoice{}, fmt.Errorf("invoice requires at least one sale order: %w", httpx.ErrValidation)
	}
	seen := map[int64]bool{}
	for _, id := range input.SaleOrderIDs {
		if seen[id] {
			return Invoice{}, fmt.Errorf("duplicate sale order %d: %w", id, httpx.ErrValidation)
		}
		seen[id] = true
	}

	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv = Invoice{SaleOrderIDs: input.SaleOrderIDs}
		for _, soID := range input.SaleOrderIDs {
			order, err := tx.GetInvoiceableOrder(ctx, soID)
			if err != nil {
				return err
			}
			if order.Status != sales.StatusDelivered {
				return fmt.Errorf("sale order %d in status %s cannot be invoiced: %w", soID, order.Status, httpx.ErrConflict)
			}
			if order.Invoiced {
				return fmt.Errorf("sale order %d: %w", soID, ErrOrderAlreadyInvoiced)
			}
			if inv.CustomerID == 0 {
				inv.CustomerID = order.CustomerID
			} else if inv.CustomerID != order.CustomerID {
				return fmt.Errorf("sale orders span multiple customers: %w", httpx.ErrValidation)
			}
			inv.TotalAmount += order.Total
		}

		number, err := tx.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		inv.Number = number
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return err
		}
		for _, soID := range input.SaleOrderIDs {
			if err := tx.LinkSaleOrder(ctx, inv.ID, soID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.recordAudit(ctx, "invoice.create", inv.ID, map[string]any{"number": inv.Number, "total": inv.TotalAmount})
	s.bumpReports(ctx)
	return inv, nil
}

// PaymentInput describes one payment to record.
type PaymentInput struct {
	Amount    float64
	Mode      string
	Reference string
}

// RecordPayment appends a payment, rejecting amounts above the open balance.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, input PaymentInput) (Payment, error) {
	if input.Amount <= 0 {
		return Payment{}, fmt.Errorf("payment amount must be positive: %w", httpx.ErrValidation)
	}
	if input.Mode == "" {
		return Payment{}, fmt.Errorf("payment mode required: %w", httpx.ErrValidation)
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	payment := Payment{InvoiceID: invoiceID, Amount: input.Amount, Mode: input.Mode, Reference: reference, PaidAt: s.now()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if input.Amount > inv.Balance() {
			return fmt.Errorf("amount %.2f over balance %.2f: %w", input.Amount, inv.Balance(), ErrOverpayment)
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return Payment{}, err
	}

	s.recordAudit(ctx, "invoice.payment", invoiceID, map[string]any{"amount": payment.Amount, "reference": payment.Reference})
	s.bumpReports(ctx)
	return payment, nil
}

// Get returns one invoice with payments and linked orders.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// CustomerLedger returns all invoices of one customer with settlement state.
func (s *Service) CustomerLedger(ctx context.Context, customerID int64) ([]LedgerEntry, error) {
	ok, err := s.catalog.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("customer %d not found: %w", customerID, httpx.ErrNotFound)
	}
	return s.repo.CustomerLedger(ctx, customerID)
}

func (s *Service) recordAudit(ctx context.Context, action string, invoiceID int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

func (s *Service) bumpReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
}
