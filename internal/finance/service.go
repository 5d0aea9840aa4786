package finance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// trendMonths is the depth of the trailing trend series.
const trendMonths = 6

// RepositoryPort abstracts the aggregation queries for the service.
type RepositoryPort interface {
	SalesTotal(ctx context.Context, from, to time.Time) (float64, error)
	PaymentsTotal(ctx context.Context, from, to time.Time) (float64, error)
	PurchasesTotal(ctx context.Context, from, to time.Time) (float64, error)
	ExpenseTotals(ctx context.Context, from, to time.Time) (direct, indirect float64, err error)
	OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenInvoice, error)
}

// Service computes the financial reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

func monthRange(month time.Time) (time.Time, time.Time) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// ageBucket assigns an open balance to its aging bucket. Bucket names lag
// their boundary by thirty days: 90days holds balances up to 120 days old.
func ageBucket(buckets *AgingBuckets, ageDays int, balance float64) {
	switch {
	case ageDays <= 30:
		buckets.Current += balance
	case ageDays <= 60:
		buckets.Days30 += balance
	case ageDays <= 90:
		buckets.Days60 += balance
	case ageDays <= 120:
		buckets.Days90 += balance
	default:
		buckets.Above90 += balance
	}
}

func (s *Service) computeAging(ctx context.Context) (AgingBuckets, error) {
	invoices, err := s.repo.OpenInvoices(ctx, s.now())
	if err != nil {
		return AgingBuckets{}, err
	}
	var buckets AgingBuckets
	for _, inv := range invoices {
		ageBucket(&buckets, inv.AgeDays, inv.Total-inv.Paid)
	}
	return buckets, nil
}

// computeTrend builds the trailing series for the months before the report
// month, one goroutine per month.
func (s *Service) computeTrend(ctx context.Context, month time.Time) ([]TrendPoint, error) {
	points := make([]TrendPoint, trendMonths)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < trendMonths; i++ {
		from, to := monthRange(month.AddDate(0, -(trendMonths - i), 0))
		idx := i
		g.Go(func() error {
			sales, err := s.repo.SalesTotal(ctx, from, to)
			if err != nil {
				return err
			}
			direct, indirect, err := s.repo.ExpenseTotals(ctx, from, to)
			if err != nil {
				return err
			}
			expenses := direct + indirect
			points[idx] = TrendPoint{
				Month:    from.Format("2006-01"),
				Sales:    sales,
				Expenses: expenses,
				Net:      sales - expenses,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Service) buildMonthlySummary(ctx context.Context, month time.Time) (MonthlySummary, error) {
	from, to := monthRange(month)
	summary := MonthlySummary{Month: from.Format("2006-01")}

	var err error
	if summary.Sales, err = s.repo.SalesTotal(ctx, from, to); err != nil {
		return MonthlySummary{}, err
	}
	if summary.PaymentsReceived, err = s.repo.PaymentsTotal(ctx, from, to); err != nil {
		return MonthlySummary{}, err
	}
	if summary.Purchases, err = s.repo.PurchasesTotal(ctx, from, to); err != nil {
		return MonthlySummary{}, err
	}
	if summary.DirectExpenses, summary.IndirectExpenses, err = s.repo.ExpenseTotals(ctx, from, to); err != nil {
		return MonthlySummary{}, err
	}
	summary.TotalExpenses = summary.DirectExpenses + summary.IndirectExpenses
	summary.NetGain = summary.Sales - (summary.Purchases + summary.TotalExpenses)

	if summary.Aging, err = s.computeAging(ctx); err != nil {
		return MonthlySummary{}, err
	}
	if summary.Trend, err = s.computeTrend(ctx, month); err != nil {
		return MonthlySummary{}, err
	}
	return summary, nil
}

// GetMonthlySummary returns the month-end report, served from the versioned
// cache when fresh.
func (s *Service) GetMonthlySummary(ctx context.Context, month time.Time) (MonthlySummary, error) {
	key, err := s.cache.BuildKey(ctx, "finance", "monthly", month.Format("2006-01"))
	if err != nil {
		return MonthlySummary{}, err
	}
	var summary MonthlySummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.buildMonthlySummary(ctx, month)
	})
	return summary, err
}

func marginPct(part, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return part / revenue * 100
}

func (s *Service) buildProfitLoss(ctx context.Context, from, to time.Time) (ProfitLoss, error) {
	report := ProfitLoss{
		From: from.Format("2006-01-02"),
		To:   to.AddDate(0, 0, -1).Format("2006-01-02"),
	}

	var err error
	if report.Revenue, err = s.repo.SalesTotal(ctx, from, to); err != nil {
		return ProfitLoss{}, err
	}
	purchases, err := s.repo.PurchasesTotal(ctx, from, to)
	if err != nil {
		return ProfitLoss{}, err
	}
	direct, indirect, err := s.repo.ExpenseTotals(ctx, from, to)
	if err != nil {
		return ProfitLoss{}, err
	}

	report.DirectCosts = purchases + direct
	report.GrossProfit = report.Revenue - report.DirectCosts
	report.GrossMarginPct = marginPct(report.GrossProfit, report.Revenue)
	report.IndirectExpenses = indirect
	report.NetProfit = report.GrossProfit - indirect
	report.NetMarginPct = marginPct(report.NetProfit, report.Revenue)
	return report, nil
}

// GetProfitLoss returns the profit and loss statement over [from, to],
// served from the versioned cache when fresh.
func (s *Service) GetProfitLoss(ctx context.Context, from, to time.Time) (ProfitLoss, error) {
	if !to.After(from) {
		return ProfitLoss{}, fmt.Errorf("to must be after from: %w", httpx.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, "finance", "pl", from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return ProfitLoss{}, err
	}
	var report ProfitLoss
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		return s.buildProfitLoss(ctx, from, to)
	})
	return report, err
}
