package dispatch

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/sequence"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

type fakeRepo struct {
	dispatches map[int64]*Dispatch
	saleOrders map[int64]sales.Status
	nextID     int64
	counter    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		dispatches: map[int64]*Dispatch{},
		saleOrders: map[int64]sales.Status{},
	}
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &fakeTx{repo: r})
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (Dispatch, error) {
	d, ok := r.dispatches[id]
	if !ok {
		return Dispatch{}, ErrDispatchNotFound
	}
	return *d, nil
}

func (r *fakeRepo) List(_ context.Context, filter ListFilter) ([]Dispatch, int, error) {
	out := make([]Dispatch, 0)
	for _, d := range r.dispatches {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, len(out), nil
}

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) NextNumber(_ context.Context, at time.Time) (string, error) {
	t.repo.counter++
	return sequence.Format(sequence.FamilyDispatch, sequence.MonthPrefix(at), t.repo.counter), nil
}

func (t *fakeTx) Insert(_ context.Context, d *Dispatch) error {
	t.repo.nextID++
	d.ID = t.repo.nextID
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	copied := *d
	t.repo.dispatches[d.ID] = &copied
	return nil
}

func (t *fakeTx) GetForUpdate(_ context.Context, id int64) (Dispatch, error) {
	d, ok := t.repo.dispatches[id]
	if !ok {
		return Dispatch{}, ErrDispatchNotFound
	}
	return *d, nil
}

func (t *fakeTx) UpdateStatus(_ context.Context, id int64, status Status, deliveredAt *time.Time) error {
	d, ok := t.repo.dispatches[id]
	if !ok {
		return ErrDispatchNotFound
	}
	d.Status = status
	if deliveredAt != nil {
		d.DeliveredAt = deliveredAt
	}
	return nil
}

func (t *fakeTx) ExistsForSaleOrder(_ context.Context, saleOrderID int64) (bool, error) {
	for _, d := range t.repo.dispatches {
		if d.SaleOrderID == saleOrderID {
			return true, nil
		}
	}
	return false, nil
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

type fakeAudit struct{}

func (fakeAudit) Record(context.Context, shared.AuditLog) error { return nil }

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, fakeAudit{}, slog.Default())
}

func TestCreateAdvancesSaleOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusReadyForDispatch
	svc := newTestService(repo)

	d, err := svc.Create(context.Background(), CreateInput{SaleOrderID: 5, Courier: "JNE", TrackingCode: "TRK-9"})
	require.NoError(t, err)
	require.Equal(t, StatusPending, d.Status)
	require.Contains(t, d.Number, "DC-")
	require.Equal(t, sales.StatusDispatched, repo.saleOrders[5])
}

func TestCreateRequiresReadyOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusInProduction
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{SaleOrderID: 5, Courier: "JNE"})
	require.ErrorIs(t, err, ErrOrderNotReady)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestCreateRejectsSecondDispatch(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusReadyForDispatch
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{SaleOrderID: 5, Courier: "JNE"})
	require.NoError(t, err)

	// The first dispatch moved the order to DISPATCHED, so re-ready it to
	// prove the duplicate check itself fires.
	repo.saleOrders[5] = sales.StatusReadyForDispatch
	_, err = svc.Create(context.Background(), CreateInput{SaleOrderID: 5, Courier: "SiCepat"})
	require.ErrorIs(t, err, ErrAlreadyDispatched)
}

func TestCreateUnknownSaleOrder(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Create(context.Background(), CreateInput{SaleOrderID: 99, Courier: "JNE"})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func seedDispatch(repo *fakeRepo, d Dispatch) *Dispatch {
	repo.nextID++
	d.ID = repo.nextID
	copied := d
	repo.dispatches[d.ID] = &copied
	return repo.dispatches[d.ID]
}

func TestDeliveryClosesSaleOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusDispatched
	seeded := seedDispatch(repo, Dispatch{Number: "DC-202608-0001", SaleOrderID: 5, Status: StatusInTransit})
	svc := newTestService(repo)

	d, err := svc.UpdateStatus(context.Background(), seeded.ID, StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, d.Status)
	require.NotNil(t, d.DeliveredAt)
	require.Equal(t, sales.StatusDelivered, repo.saleOrders[5])
}

func TestUpdateStatusRejectsSkip(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusDispatched
	seeded := seedDispatch(repo, Dispatch{SaleOrderID: 5, Status: StatusPending})
	svc := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, StatusDelivered)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}

func TestDeliveredIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	repo.saleOrders[5] = sales.StatusDelivered
	now := time.Now()
	seeded := seedDispatch(repo, Dispatch{SaleOrderID: 5, Status: StatusDelivered, DeliveredAt: &now})
	svc := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), seeded.ID, StatusInTransit)
	require.ErrorIs(t, err, httpx.ErrInvalidTransition)
}
