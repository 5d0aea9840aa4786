package sales

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *fakeRepo) http.Handler {
	svc, _ := newTestService(repo, fixtureCatalog())
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	r.Route("/sale-orders", h.MountRoutes)
	return r
}

func TestHandlerCreateOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.state.stock[10] = 5
	router := newTestRouter(repo)

	body := `{"customerId":1,"items":[{"variantId":10,"qty":2,"discountPct":10}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sale-orders", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var order Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, StatusInProduction, order.Status)
	require.InDelta(t, 180.0, order.TotalAmount, 1e-9)
	require.Contains(t, order.Number, "SO-")
}

func TestHandlerCreateOrderValidation(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sale-orders", strings.NewReader(`{"customerId":1,"items":[]}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Validation Failed", problem["title"])
	require.NotEmpty(t, problem["fields"])
}

func TestHandlerCreateOrderInsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	repo.state.stock[10] = 1
	router := newTestRouter(repo)

	body := `{"customerId":1,"items":[{"variantId":10,"qty":5}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sale-orders", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem struct {
		Title  string `json:"title"`
		Fields struct {
			VariantID int64 `json:"variantId"`
			Available int   `json:"available"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Insufficient Stock", problem.Title)
	require.Equal(t, int64(10), problem.Fields.VariantID)
	require.Equal(t, 1, problem.Fields.Available)
}

func TestHandlerGetOrderNotFound(t *testing.T) {
	router := newTestRouter(newFakeRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sale-orders/999", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerStatusTransitionRejected(t *testing.T) {
	repo := newFakeRepo()
	seeded := seedOrder(repo, Order{CustomerID: 1, Status: StatusConfirmed})
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch,
		fmt.Sprintf("/sale-orders/%d/status", seeded.ID),
		strings.NewReader(`{"status":"DELIVERED"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid Status Transition")
}

func TestHandlerDeleteInvoicedOrderConflicts(t *testing.T) {
	repo := newFakeRepo()
	seeded := seedOrder(repo, Order{CustomerID: 1, Status: StatusConfirmed})
	repo.state.invoiced[seeded.ID] = true
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/sale-orders/%d", seeded.ID), nil))

	require.Equal(t, http.StatusConflict, rec.Code)
}
