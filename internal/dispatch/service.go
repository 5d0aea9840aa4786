package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Dispatch, error)
	List(ctx context.Context, filter ListFilter) ([]Dispatch, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates shipments and their sale order side effects.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// CreateInput describes a new shipment.
type CreateInput struct {
	SaleOrderID  int64
	Courier      string
	TrackingCode string
}

// Create opens a shipment for a sale order that is ready to leave. The sale
// order moves to DISPATCHED in the same transaction; a unique index on
// sale_order_id backs the one-shipment-per-order rule.
func (s *Service) Create(ctx context.Context, input CreateInput) (Dispatch, error) {
	d := Dispatch{
		SaleOrderID:  input.SaleOrderID,
		Courier:      input.Courier,
		TrackingCode: input.TrackingCode,
		Status:       StatusPending,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		status, err := tx.SaleOrderStatus(ctx, input.SaleOrderID)
		if err != nil {
			return err
		}
		if status != sales.StatusReadyForDispatch {
			return fmt.Errorf("sale order in status %s: %w", status, ErrOrderNotReady)
		}
		exists, err := tx.ExistsForSaleOrder(ctx, input.SaleOrderID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyDispatched
		}

		number, err := tx.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		d.Number = number
		if err := tx.Insert(ctx, &d); err != nil {
			return err
		}
		return tx.AdvanceSaleOrder(ctx, input.SaleOrderID, sales.StatusDispatched)
	})
	if err != nil {
		return Dispatch{}, err
	}

	s.recordAudit(ctx, "dispatch.create", d.ID, map[string]any{"number": d.Number, "saleOrderId": d.SaleOrderID})
	return d, nil
}

// UpdateStatus moves the shipment along PENDING -> IN_TRANSIT -> DELIVERED.
// Delivery stamps delivered_at and closes the sale order atomically.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (Dispatch, error) {
	var d Dispatch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(next) {
			return fmt.Errorf("dispatch %s cannot move %s -> %s: %w", d.Number, d.Status, next, httpx.ErrInvalidTransition)
		}

		var deliveredAt *time.Time
		if next == StatusDelivered {
			now := s.now()
			deliveredAt = &now
			if err := tx.AdvanceSaleOrder(ctx, d.SaleOrderID, sales.StatusDelivered); err != nil {
				return err
			}
		}
		d.Status = next
		if deliveredAt != nil {
			d.DeliveredAt = deliveredAt
		}
		return tx.UpdateStatus(ctx, d.ID, d.Status, deliveredAt)
	})
	if err != nil {
		return Dispatch{}, err
	}

	s.recordAudit(ctx, "dispatch.status", d.ID, map[string]any{"status": d.Status})
	return d, nil
}

// Get returns one dispatch.
func (s *Service) Get(ctx context.Context, id int64) (Dispatch, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns dispatches matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Dispatch, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	dispatches, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return dispatches, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, action string, dispatchID int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "dispatch",
		EntityID: fmt.Sprintf("%d", dispatchID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
