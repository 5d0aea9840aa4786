package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/catalog"
	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// CatalogPort resolves master data referenced by purchase orders.
type CatalogPort interface {
	VendorExists(ctx context.Context, id int64) (bool, error)
	GetVariant(ctx context.Context, id int64) (catalog.Variant, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportCachePort invalidates cached financial reports after a write.
type ReportCachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates the purchase order lifecycle.
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

// ItemInput is one requested purchase line.
type ItemInput struct {
	VariantID int64
	Qty       int
	UnitPrice float64
}

// CreateInput describes a new purchase order.
type CreateInput struct {
	VendorID    int64
	SaleOrderID *int64
	Notes       string
	Items       []ItemInput
}

// Create validates and persists a new purchase order in PENDING state.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	ok, err := s.catalog.VendorExists(ctx, input.VendorID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("vendor %d not found: %w", input.VendorID, httpx.ErrNotFound)
	}
	if len(input.Items) == 0 {
		return Order{}, fmt.Errorf("purchase order requires at least one item: %w", httpx.ErrValidation)
	}

	items := make([]Item, 0, len(input.Items))
	var total float64
	for _, in := range input.Items {
		if in.Qty <= 0 {
			return Order{}, fmt.Errorf("item qty must be positive: %w", httpx.ErrValidation)
		}
		if in.UnitPrice < 0 {
			return Order{}, fmt.Errorf("item price must not be negative: %w", httpx.ErrValidation)
		}
		variant, err := s.catalog.GetVariant(ctx, in.VariantID)
		if err != nil {
			return Order{}, fmt.Errorf("variant %d invalid: %w", in.VariantID, httpx.ErrValidation)
		}
		item := Item{VariantID: variant.ID, SKU: variant.SKU, Qty: in.Qty, UnitPrice: in.UnitPrice}
		items = append(items, item)
		total += item.LineTotal()
	}

	order := Order{
		VendorID:    input.VendorID,
		SaleOrderID: input.SaleOrderID,
		Status:      StatusPending,
		Notes:       input.Notes,
		TotalValue:  total,
		Items:       items,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if order.SaleOrderID != nil {
			if _, err := tx.SaleOrderStatus(ctx, *order.SaleOrderID); err != nil {
				return err
			}
		}
		number, err := tx.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		order.Number = number
		return tx.Insert(ctx, &order)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, "purchase_order.create", order.ID, map[string]any{"number": order.Number})
	s.bumpReports(ctx)
	return order, nil
}

// UpdateStatus moves the order along its lifecycle. The RECEIVED transition
// is the goods receipt: stock is incremented per line and a linked sale order
// waiting in CONFIRMED advances to IN_PRODUCTION, all in one transaction. The
// sale order's own stock was never deducted for purchased lines, so the
// receipt does not touch its stock_deducted flag.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("purchase order %s cannot move %s -> %s: %w", order.Number, order.Status, next, httpx.ErrInvalidTransition)
		}

		var receivedAt *time.Time
		if next == StatusReceived {
			now := s.now()
			receivedAt = &now
			for _, item := range order.Items {
				if err := tx.IncrementStock(ctx, item.VariantID, item.Qty); err != nil {
					return err
				}
			}
			if order.SaleOrderID != nil {
				status, err := tx.SaleOrderStatus(ctx, *order.SaleOrderID)
				if err != nil {
					return err
				}
				if status == sales.StatusConfirmed {
					if err := tx.AdvanceSaleOrder(ctx, *order.SaleOrderID, sales.StatusInProduction); err != nil {
						return err
					}
				}
			}
		}
		order.Status = next
		order.ReceivedAt = receivedAt
		return tx.UpdateStatus(ctx, order.ID, order.Status, receivedAt)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, "purchase_order.status", order.ID, map[string]any{"status": order.Status})
	s.bumpReports(ctx)
	return order, nil
}

// Get returns one purchase order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns purchase order headers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Order, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, orderID int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", orderID),
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
