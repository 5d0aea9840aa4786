package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu           sync.Mutex
	sales        map[string]float64
	payments     map[string]float64
	purchases    map[string]float64
	direct       map[string]float64
	indirect     map[string]float64
	openInvoices []OpenInvoice
	salesCalls   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sales:     map[string]float64{},
		payments:  map[string]float64{},
		purchases: map[string]float64{},
		direct:    map[string]float64{},
		indirect:  map[string]float64{},
	}
}

func monthKey(from time.Time) string {
	return from.Format("2006-01")
}

func (r *fakeRepo) SalesTotal(_ context.Context, from, _ time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.salesCalls++
	return r.sales[monthKey(from)], nil
}

func (r *fakeRepo) PaymentsTotal(_ context.Context, from, _ time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payments[monthKey(from)], nil
}

func (r *fakeRepo) PurchasesTotal(_ context.Context, from, _ time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purchases[monthKey(from)], nil
}

func (r *fakeRepo) ExpenseTotals(_ context.Context, from, _ time.Time) (float64, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.direct[monthKey(from)], r.indirect[monthKey(from)], nil
}

func (r *fakeRepo) OpenInvoices(context.Context, time.Time) ([]OpenInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openInvoices, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestAgingBoundaries(t *testing.T) {
	repo := newFakeRepo()
	repo.openInvoices = []OpenInvoice{
		{Total: 100, Paid: 0, AgeDays: 30},
		{Total: 200, Paid: 0, AgeDays: 31},
		{Total: 300, Paid: 0, AgeDays: 60},
		{Total: 400, Paid: 0, AgeDays: 61},
		{Total: 500, Paid: 0, AgeDays: 90},
		{Total: 600, Paid: 0, AgeDays: 91},
		{Total: 700, Paid: 0, AgeDays: 120},
		{Total: 800, Paid: 300, AgeDays: 121},
	}
	svc := NewService(repo, nil)

	buckets, err := svc.computeAging(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 100.0, buckets.Current, 1e-9)
	require.InDelta(t, 500.0, buckets.Days30, 1e-9)
	require.InDelta(t, 900.0, buckets.Days60, 1e-9)
	require.InDelta(t, 1300.0, buckets.Days90, 1e-9)
	require.InDelta(t, 500.0, buckets.Above90, 1e-9)
}

func TestMonthlySummaryNetGain(t *testing.T) {
	repo := newFakeRepo()
	repo.sales["2026-08"] = 10000
	repo.payments["2026-08"] = 7000
	repo.purchases["2026-08"] = 3000
	repo.direct["2026-08"] = 500
	repo.indirect["2026-08"] = 1500
	svc := NewService(repo, nil)

	summary, err := svc.GetMonthlySummary(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2026-08", summary.Month)
	require.InDelta(t, 10000.0, summary.Sales, 1e-9)
	require.InDelta(t, 7000.0, summary.PaymentsReceived, 1e-9)
	require.InDelta(t, 2000.0, summary.TotalExpenses, 1e-9)
	require.InDelta(t, 5000.0, summary.NetGain, 1e-9)
}

func TestTrendCoversSixPriorMonths(t *testing.T) {
	repo := newFakeRepo()
	repo.sales["2026-07"] = 900
	repo.direct["2026-07"] = 100
	repo.indirect["2026-07"] = 200
	svc := NewService(repo, nil)

	summary, err := svc.GetMonthlySummary(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, summary.Trend, 6)
	require.Equal(t, "2026-02", summary.Trend[0].Month)
	require.Equal(t, "2026-07", summary.Trend[5].Month)
	require.InDelta(t, 900.0, summary.Trend[5].Sales, 1e-9)
	require.InDelta(t, 600.0, summary.Trend[5].Net, 1e-9)
}

func TestProfitLossMargins(t *testing.T) {
	repo := newFakeRepo()
	repo.sales["2026-08"] = 10000
	repo.purchases["2026-08"] = 4000
	repo.direct["2026-08"] = 1000
	repo.indirect["2026-08"] = 2000
	svc := NewService(repo, nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.GetProfitLoss(context.Background(), from, to)
	require.NoError(t, err)
	require.InDelta(t, 5000.0, report.GrossProfit, 1e-9)
	require.InDelta(t, 50.0, report.GrossMarginPct, 1e-9)
	require.InDelta(t, 3000.0, report.NetProfit, 1e-9)
	require.InDelta(t, 30.0, report.NetMarginPct, 1e-9)
}

func TestProfitLossZeroRevenue(t *testing.T) {
	repo := newFakeRepo()
	repo.indirect["2026-08"] = 2000
	svc := NewService(repo, nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.GetProfitLoss(context.Background(), from, to)
	require.NoError(t, err)
	require.Zero(t, report.GrossMarginPct)
	require.Zero(t, report.NetMarginPct)
	require.InDelta(t, -2000.0, report.NetProfit, 1e-9)
}

func TestProfitLossRejectsInvertedRange(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetProfitLoss(context.Background(), from, from)
	require.Error(t, err)
}

func TestCacheServesUntilBump(t *testing.T) {
	repo := newFakeRepo()
	repo.sales["2026-08"] = 10000
	cache := newTestCache(t)
	svc := NewService(repo, cache)

	month := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetMonthlySummary(context.Background(), month)
	require.NoError(t, err)
	// Month plus six trend months.
	firstCalls := repo.salesCalls
	require.Equal(t, 7, firstCalls)

	_, err = svc.GetMonthlySummary(context.Background(), month)
	require.NoError(t, err)
	require.Equal(t, firstCalls, repo.salesCalls)

	require.NoError(t, cache.Bump(context.Background()))
	_, err = svc.GetMonthlySummary(context.Background(), month)
	require.NoError(t, err)
	require.Equal(t, firstCalls*2, repo.salesCalls)
}
