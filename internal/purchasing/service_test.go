package purchasing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opticore-erp/opticore-erp/internal/catalog"
	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/sequence"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

type fakeRepo struct {
	orders     map[int64]*Order
	stock      map[int64]int
	saleOrders map[int64]sales.Status
	nextID     int64
	counter    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:     map[int64]*Order{},
		stock:      map[int64]int{},
		saleOrders: map[int64]sales.Status{},
	}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: r})
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) ([]Order, int, error) {
	out := make([]Order, 0)
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.VendorID != 0 && order.VendorID != filter.VendorID {
			continue
		}
		out = append(out, *order)
	}
	return out, len(out), nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) NextNumber(_ context.Context, at time.Time) (string, error) {
	t.repo.counter++
	return sequence.Format(sequence.FamilyPurchaseOrder, sequence.YearPrefix(at), t.repo.counter), nil
}

func (t *fakeTx) Insert(_ context.Context, order *Order) error {
	t.repo.nextID++
	order.ID = t.repo.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	copied.Items = append([]Item(nil), order.Items...)
	t.repo.orders[order.ID] = &copied
	return nil
}

func (t *fakeTx) GetForUpdate(_ context.Context, id int64) (Order, error) {
	order, ok := t.repo.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

func (t *fakeTx) UpdateStatus(_ context.Context, id int64, status Status, receivedAt *time.Time) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	if receivedAt != nil {
		order.ReceivedAt = receivedAt
	}
	return nil
}

func (t *fakeTx) IncrementStock(_ context.Context, variantID int64, qty int) error {
	t.repo.stock[variantID] += qty
	return nil
}

func (t *fakeTx) SaleOrderStatus(_ context.Context, saleOrderID int64) (sales.Status, error) {
	status, ok := t.repo.saleOrders[saleOrderID]
	if !ok {
		return "", sales.ErrOrderNotFound
	}
	return status, nil
}

func (t *fakeTx) AdvanceSaleOrder(_ context.Context, saleOrderID int64, status sales.Status) error {
	if _, ok := t.repo.saleOrders[saleOrderID]; !ok {
		return sales.ErrOrderNotFound
	}
	t.repo.saleOrders[saleOrderID] = status
	return nil
}

type fakeCatalog struct {
	vendors  map[int64]bool
	variants map[int64]catalog.Variant
}

func (c *fakeCatalog) VendorExists(_ context.Context, id int64) (bool, error) {
	return c.vendors[id], nil
}

func (c *fakeCatalog) GetVariant(_ context.Context, id int64) (catalog.Variant, error) {
	variant, ok := c.variants[id]
	if !ok {
		return catalog.Variant{}, catalog.ErrVariantNotFound
	}
	return variant, nil
}

type fakeAudit struct{}

func (fakeAudit) Record(context.Context, shared.AuditLog) error { return nil }

func fixtureCatalog() *fakeCatalog {
	return &fakeCatalog{
		vendors: map[int64]bool{1: true},
		variants: map[int64]catalog.Variant{
			10: {ID: 10, SKU: "CR39-SV-150", Price: 100},
			20: {ID: 20, SKU: "RX-PROG-167", Price: 900, IsRx: true},
		},
	}
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, fixtureCatalog(), fakeAudit{}, nil, slog.Default())
}

func TestCreateComputesTotalValue(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateInput{
		VendorID: 1,
		Items: []ItemInput{
			{VariantID: 10, Qty: 5, UnitPrice: 40},
			{VariantID: 20, Qty: 1, UnitPrice: 600},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.InDelta(t, 800.0, order.TotalValue, 1e-9)
	require.Contains(t, order.Number, "PO-")
}

func TestCreateUnknownVendor(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		VendorID: 9,
		Items:    []ItemInput{{VariantID: 10, Qty: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateUnknownLinkedSaleOrder(t *testing.T) {
	svc := newTestService(newFakeRepo())
	missing := int64(77)
	_, err := svc.Create(context.Background(), CreateInput{
		VendorID:    1,
		SaleOrderID: &missing,
		Items:       []ItemInput{{VariantID: 10, Qty: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func seedOrder(repo *fakeRepo, order Order) *Order {
	repo.nextID++
	order.ID = repo.nextID
	copied := order
	copied.Items = append([]Item(nil), order.Items...)
	repo.orders[order.ID] = &copied
	return repo.orders[order.ID]
}

func TestReceiptIncrementsStockAndAdvancesSaleOrder(t *testing.T) {
	repo := newFakeRepo()
	soID := int64(5)
	repo.saleOrders[soID] = sales.StatusConfirmed
	seeded := seedOrder(repo, Order{
		VendorID:    1,
		SaleOrderID: &soID,
		Status:      StatusOrdered,
		Items: []Item{
			{VariantID: 10, Qty: 5},
			{VariantID: 20, Qty: 1},
		},
	})
	svc := newTestService(repo)

	order, err := svc.UpdateStatus(context.Background(), seeded.ID, StatusReceived)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, order.Status)
	require.NotNil(t, order.ReceivedAt)
	require.Equal(t, 5, repo.stock[10])
	require.Equal(t, 1, repo.stock[20])
	require.Equal(t, sales.StatusInProduction, repo.saleOrders[soID])
}

func TestReceiptLeavesAdvancedSaleOrderAlone(t *testing.T) {
	repo := newFakeRepo()
	soID := int64(5)
	repo.saleOrders[soID] = sales.StatusReadyForDispatch
	seeded := seedOrder(repo, Order{
		VendorID:    1,
		SaleOrderID: &soID,
		Status:      StatusOrdered,
		Items:       []Item{{VariantID: 10, Qty: 2}},
	})
	svc := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, StatusReceived)
	require.NoError(t, err)
	require.Equal(t, sales.StatusReadyForDispatch, repo.saleOrders[soID])
}

func TestStatusTransitionRules(t *testing.T) {
	repo := newFakeRepo()
	pending := seedOrder(repo, Order{VendorID: 1, Status: StatusPending})
	received := seedOrder(repo, Order{VendorID: 1, Status: StatusReceived})
	svc := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), pending.ID, StatusReceived)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), pending.ID, StatusOrdered)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), received.ID, StatusCancelled)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestCancelFromPending(t *testing.T) {
	repo := newFakeRepo()
	pending := seedOrder(repo, Order{VendorID: 1, Status: StatusPending})
	svc := newTestService(repo)

	order, err := svc.UpdateStatus(context.Background(), pending.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, order.Status)
	require.Empty(t, repo.stock)
}
