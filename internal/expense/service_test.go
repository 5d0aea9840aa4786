package expense

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

type fakeRepo struct {
	expenses []Expense
	nextID   int64
}

func (r *fakeRepo) Insert(_ context.Context, e *Expense) error {
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now()
	r.expenses = append(r.expenses, *e)
	return nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) ([]Expense, int, error) {
	out := make([]Expense, 0)
	for _, e := range r.expenses {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && e.IncurredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.IncurredAt.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *fakeRepo) SumByType(_ context.Context, from, to time.Time) (float64, float64, error) {
	var direct, indirect float64
	for _, e := range r.expenses {
		if e.IncurredAt.Before(from) || !e.IncurredAt.Before(to) {
			continue
		}
		if e.Type == TypeDirect {
			direct += e.Amount
		} else {
			indirect += e.Amount
		}
	}
	return direct, indirect, nil
}

type fakeAudit struct{}

func (fakeAudit) Record(context.Context, shared.AuditLog) error { return nil }

type fakeReports struct {
	bumps int
}

func (r *fakeReports) Bump(context.Context) error {
	r.bumps++
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *fakeReports) {
	reports := &fakeReports{}
	return NewService(repo, fakeAudit{}, reports, slog.Default()), reports
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(&fakeRepo{})

	_, err := svc.Create(context.Background(), CreateInput{Type: TypeDirect, Category: "consumables", Amount: 0})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{Type: Type("WEIRD"), Category: "consumables", Amount: 10})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{Type: TypeDirect, Amount: 10})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateDefaultsIncurredAtAndBumpsReports(t *testing.T) {
	repo := &fakeRepo{}
	svc, reports := newTestService(repo)

	e, err := svc.Create(context.Background(), CreateInput{Type: TypeIndirect, Category: "rent", Amount: 1200})
	require.NoError(t, err)
	require.False(t, e.IncurredAt.IsZero())
	require.Equal(t, 1, reports.bumps)
}

func TestMonthlySummary(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)

	aug := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateInput{Type: TypeDirect, Category: "coating", Amount: 150, IncurredAt: aug})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Type: TypeIndirect, Category: "rent", Amount: 1200, IncurredAt: aug})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{
		Type: TypeDirect, Category: "coating", Amount: 999,
		IncurredAt: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	summary, err := svc.MonthlySummary(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2026-08", summary.Month)
	require.InDelta(t, 150.0, summary.Direct, 1e-9)
	require.InDelta(t, 1200.0, summary.Indirect, 1e-9)
	require.InDelta(t, 1350.0, summary.Total, 1e-9)
}

func TestListFiltersByType(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(repo)
	_, err := svc.Create(context.Background(), CreateInput{Type: TypeDirect, Category: "coating", Amount: 10})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Type: TypeIndirect, Category: "rent", Amount: 20})
	require.NoError(t, err)

	expenses, pagination, err := svc.List(context.Background(), ListFilter{Type: TypeIndirect}, 1, 20)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	require.Equal(t, "rent", expenses[0].Category)
	require.Equal(t, 1, pagination.Total)
}
