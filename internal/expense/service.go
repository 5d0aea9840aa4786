package expense

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, e *Expense) error
	List(ctx context.Context, filter ListFilter) ([]Expense, int, error)
	SumByType(ctx context.Context, from, to time.Time) (direct, indirect float64, err error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportCachePort invalidates cached financial reports after a write.
type ReportCachePort interface {
	Bump(ctx context.Context) error
}

// Service coordinates expense recording.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	reports ReportCachePort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, reports ReportCachePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, reports: reports, logger: logger, now: time.Now}
}

// CreateInput describes a new expense.
type CreateInput struct {
	Type        Type
	Category    string
	Description string
	Amount      float64
	IncurredAt  time.Time
}

// Create records one expense.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	if input.Amount <= 0 {
		return Expense{}, fmt.Errorf("expense amount must be positive: %w", httpx.ErrValidation)
	}
	if input.Category == "" {
		return Expense{}, fmt.Errorf("expense category required: %w", httpx.ErrValidation)
	}
	if _, err := ParseType(string(input.Type)); err != nil {
		return Expense{}, err
	}
	incurredAt := input.IncurredAt
	if incurredAt.IsZero() {
		incurredAt = s.now()
	}

	e := Expense{
		Type:        input.Type,
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		IncurredAt:  incurredAt,
	}
	if err := s.repo.Insert(ctx, &e); err != nil {
		return Expense{}, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   "expense.create",
		Entity:   "expense",
		EntityID: fmt.Sprintf("%d", e.ID),
		Meta:     map[string]any{"type": e.Type, "amount": e.Amount},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	if s.reports != nil {
		if err := s.reports.Bump(ctx); err != nil {
			s.logger.Warn("report cache bump failed", slog.Any("error", err))
		}
	}
	return e, nil
}

// List returns expenses matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Expense, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	expenses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return expenses, shared.NewPagination(page, perPage, total), nil
}

// MonthlySummary totals one calendar month by expense type.
func (s *Service) MonthlySummary(ctx context.Context, month time.Time) (MonthlySummary, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	direct, indirect, err := s.repo.SumByType(ctx, from, to)
	if err != nil {
		return MonthlySummary{}, err
	}
	return MonthlySummary{
		Month:    from.Format("2006-01"),
		Direct:   direct,
		Indirect: indirect,
		Total:    direct + indirect,
	}, nil
}
