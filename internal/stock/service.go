package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, variantID int64) (Level, error)
	List(ctx context.Context, filter ListFilter) ([]Level, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual stock operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	VariantID int64
	Delta     int
	Reason    string
}

// Adjust applies a manual correction to the on-hand counter.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Level, error) {
	if input.VariantID == 0 {
		return Level{}, fmt.Errorf("stock: variant required: %w", ErrLevelNotFound)
	}
	if input.Delta == 0 {
		return Level{}, ErrInvalidQuantity
	}

	var level Level
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if input.Delta > 0 {
			err = tx.Increment(ctx, input.VariantID, input.Delta)
		} else {
			err = tx.Decrement(ctx, input.VariantID, -input.Delta)
		}
		if err != nil {
			return err
		}
		level, err = tx.Get(ctx, input.VariantID)
		return err
	})
	if err != nil {
		return Level{}, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   "stock.adjust",
		Entity:   "lens_variant",
		EntityID: fmt.Sprintf("%d", input.VariantID),
		Meta:     map[string]any{"delta": input.Delta, "reason": input.Reason},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return level, nil
}

// Get returns one variant's stock level.
func (s *Service) Get(ctx context.Context, variantID int64) (Level, error) {
	return s.repo.Get(ctx, variantID)
}

// List returns stock levels matching the filter plus pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Level, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	levels, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return levels, shared.NewPagination(page, perPage, total), nil
}
