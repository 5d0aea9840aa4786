package stock

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

type fakeRepo struct {
	levels map[int64]*Level
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{levels: map[int64]*Level{}}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: r})
}

func (r *fakeRepo) Get(_ context.Context, variantID int64) (Level, error) {
	level, ok := r.levels[variantID]
	if !ok {
		return Level{}, ErrLevelNotFound
	}
	return *level, nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) ([]Level, int, error) {
	out := make([]Level, 0)
	for _, level := range r.levels {
		if filter.LowOnly && level.OnHand > level.MinStock {
			continue
		}
		out = append(out, *level)
	}
	return out, len(out), nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) Increment(_ context.Context, variantID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	level, ok := t.repo.levels[variantID]
	if !ok {
		level = &Level{VariantID: variantID}
		t.repo.levels[variantID] = level
	}
	level.OnHand += qty
	return nil
}

func (t *fakeTx) Decrement(_ context.Context, variantID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	available := 0
	if level, ok := t.repo.levels[variantID]; ok {
		available = level.OnHand
	}
	if available < qty {
		return &httpx.InsufficientStockError{VariantID: variantID, Requested: qty, Available: available}
	}
	t.repo.levels[variantID].OnHand -= qty
	return nil
}

func (t *fakeTx) Get(ctx context.Context, variantID int64) (Level, error) {
	return t.repo.Get(ctx, variantID)
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo *fakeRepo, audit *fakeAudit) *Service {
	return NewService(repo, audit, slog.Default())
}

func TestAdjustIncrementsAndAudits(t *testing.T) {
	repo := newFakeRepo()
	repo.levels[7] = &Level{VariantID: 7, OnHand: 3, MinStock: 5}
	audit := &fakeAudit{}
	svc := newTestService(repo, audit)

	level, err := svc.Adjust(context.Background(), AdjustmentInput{VariantID: 7, Delta: 10, Reason: "cycle count"})
	require.NoError(t, err)
	require.Equal(t, 13, level.OnHand)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "stock.adjust", audit.logs[0].Action)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	repo := newFakeRepo()
	repo.levels[7] = &Level{VariantID: 7, OnHand: 3}
	svc := newTestService(repo, &fakeAudit{})

	_, err := svc.Adjust(context.Background(), AdjustmentInput{VariantID: 7, Delta: -5, Reason: "shrinkage"})
	var stockErr *httpx.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 3, stockErr.Available)
	require.Equal(t, 5, stockErr.Requested)

	level, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 3, level.OnHand)
}

func TestAdjustRejectsZeroDelta(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeAudit{})
	_, err := svc.Adjust(context.Background(), AdjustmentInput{VariantID: 7, Delta: 0, Reason: "noop"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAdjustCreatesMissingLevel(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeAudit{})

	level, err := svc.Adjust(context.Background(), AdjustmentInput{VariantID: 9, Delta: 4, Reason: "initial load"})
	require.NoError(t, err)
	require.Equal(t, 4, level.OnHand)
}

func TestListLowStockOnly(t *testing.T) {
	repo := newFakeRepo()
	repo.levels[1] = &Level{VariantID: 1, OnHand: 2, MinStock: 5}
	repo.levels[2] = &Level{VariantID: 2, OnHand: 50, MinStock: 5}
	svc := newTestService(repo, &fakeAudit{})

	levels, pagination, err := svc.List(context.Background(), ListFilter{LowOnly: true}, 1, 20)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	require.Equal(t, int64(1), levels[0].VariantID)
	require.Equal(t, 1, pagination.Total)
}

func TestGetMissingLevel(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeAudit{})
	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.True(t, errors.Is(err, ErrLevelNotFound))
}
