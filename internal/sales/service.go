package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/catalog"
	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// CatalogPort resolves master data referenced by orders.
type CatalogPort interface {
	CustomerExists(ctx context.Context, id int64) (bool, error)
	GetVariant(ctx context.Context, id int64) (catalog.Variant, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the sale order lifecycle.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, audit: audit, logger: logger, now: time.Now}
}

// ItemInput is one requested order line.
type ItemInput struct {
	VariantID   int64
	Qty         int
	DiscountPct float64
}

// CreateInput describes a new sale order.
type CreateInput struct {
	CustomerID int64
	Notes      string
	Items      []ItemInput
}

func (s *Service) resolveItems(ctx context.Context, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("order requires at least one item: %w", httpx.ErrValidation)
	}
	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		if in.Qty <= 0 {
			return nil, fmt.Errorf("item qty must be positive: %w", httpx.ErrValidation)
		}
		if in.DiscountPct < 0 || in.DiscountPct > 100 {
			return nil, fmt.Errorf("item discount must be between 0 and 100: %w", httpx.ErrValidation)
		}
		variant, err := s.catalog.GetVariant(ctx, in.VariantID)
		if err != nil {
			return nil, fmt.Errorf("variant %d invalid: %w", in.VariantID, httpx.ErrValidation)
		}
		items = append(items, Item{
			VariantID:   variant.ID,
			SKU:         variant.SKU,
			Qty:         in.Qty,
			UnitPrice:   variant.Price,
			DiscountPct: in.DiscountPct,
			IsRx:        variant.IsRx,
		})
	}
	return items, nil
}

func orderTotal(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

// deductStock decrements the counters for every non-prescription line.
func deductStock(ctx context.Context, tx TxRepository, items []Item) error {
	for _, item := range items {
		if item.IsRx {
			continue
		}
		if err := tx.DecrementStock(ctx, item.VariantID, item.Qty); err != nil {
			return err
		}
	}
	return nil
}

// Create validates and persists a new sale order. Orders with a prescription
// line start at CONFIRMED and touch no stock; pure stock orders start at
// IN_PRODUCTION with their stock deducted in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	ok, err := s.catalog.CustomerExists(ctx, input.CustomerID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("customer %d not found: %w", input.CustomerID, httpx.ErrNotFound)
	}
	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		CustomerID:  input.CustomerID,
		Notes:       input.Notes,
		TotalAmount: orderTotal(items),
		Items:       items,
	}
	if order.HasRxItem() {
		order.Status = StatusConfirmed
	} else {
		order.Status = StatusInProduction
		order.StockDeducted = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		order.Number = number
		if order.StockDeducted {
			if err := deductStock(ctx, tx, order.Items); err != nil {
				return err
			}
		}
		return tx.Insert(ctx, &order)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, "sale_order.create", order.ID, map[string]any{"number": order.Number, "status": order.Status})
	return order, nil
}

// UpdateStatus advances the order one step along the lifecycle. Entering
// IN_PRODUCTION deducts stock exactly once, guarded by the stock_deducted
// flag.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("sale order %s cannot move %s -> %s: %w", order.Number, order.Status, next, httpx.ErrInvalidTransition)
		}
		if next == StatusInProduction && !order.StockDeducted {
			if err := deductStock(ctx, tx, order.Items); err != nil {
				return err
			}
			order.StockDeducted = true
		}
		order.Status = next
		return tx.UpdateStatus(ctx, order.ID, order.Status, order.StockDeducted)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, "sale_order.status", order.ID, map[string]any{"status": order.Status})
	return order, nil
}

// UpdateInput carries a full order revision.
type UpdateInput struct {
	Notes string
	Items []ItemInput
}

// Update replaces the lines of an order that is still editable.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Order, error) {
	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return Order{}, err
	}

	var order Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.StockDeducted || (order.Status != StatusDraft && order.Status != StatusConfirmed) {
			return ErrOrderLocked
		}
		order.Notes = input.Notes
		order.Items = items
		order.TotalAmount = orderTotal(items)
		if err := tx.ReplaceItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		return tx.UpdateHeader(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}

	s.recordAudit(ctx, "sale_order.update", order.ID, map[string]any{"total": order.TotalAmount})
	return order, nil
}

// DispatchInfoInput carries shipment metadata.
type DispatchInfoInput struct {
	Courier      string
	TrackingCode string
}

// dispatchInfoAllowed lists states in which shipment metadata may change.
var dispatchInfoAllowed = map[Status]bool{
	StatusReadyForDispatch: true,
	StatusDispatched:       true,
	StatusDelivered:        true,
}

// UpdateDispatchInfo sets courier and tracking details once the order is
// ready to leave the workshop.
func (s *Service) UpdateDispatchInfo(ctx context.Context, id int64, input DispatchInfoInput) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !dispatchInfoAllowed[order.Status] {
			return fmt.Errorf("dispatch info not editable in status %s: %w", order.Status, httpx.ErrConflict)
		}
		order.Courier = input.Courier
		order.TrackingCode = input.TrackingCode
		return tx.UpdateDispatchInfo(ctx, order.ID, order.Courier, order.TrackingCode)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Delete soft-deletes an order that never affected stock, dispatches or
// invoices.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.StockDeducted || (order.Status != StatusDraft && order.Status != StatusConfirmed) {
			return ErrOrderLocked
		}
		if dispatched, err := tx.HasDispatch(ctx, order.ID); err != nil {
			return err
		} else if dispatched {
			return fmt.Errorf("sale order has a dispatch: %w", httpx.ErrConflict)
		}
		if invoiced, err := tx.HasInvoice(ctx, order.ID); err != nil {
			return err
		} else if invoiced {
			return fmt.Errorf("sale order is invoiced: %w", httpx.ErrConflict)
		}
		return tx.SoftDelete(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, "sale_order.delete", id, nil)
	return nil
}

// Get returns one sale order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns sale order headers matching the filter.
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
		Entity:   "sale_order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
