package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opticore-erp/opticore-erp/internal/billing"
	"github.com/opticore-erp/opticore-erp/internal/catalog"
	"github.com/opticore-erp/opticore-erp/internal/dispatch"
	"github.com/opticore-erp/opticore-erp/internal/expense"
	"github.com/opticore-erp/opticore-erp/internal/finance"
	"github.com/opticore-erp/opticore-erp/internal/purchasing"
	"github.com/opticore-erp/opticore-erp/internal/sales"
	"github.com/opticore-erp/opticore-erp/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SalesHandler      *sales.Handler
	PurchasingHandler *purchasing.Handler
	DispatchHandler   *dispatch.Handler
	BillingHandler    *billing.Handler
	ExpenseHandler    *expense.Handler
	FinanceHandler    *finance.Handler
	StockHandler      *stock.Handler
	CatalogHandler    *catalog.Handler
}

// NewRouter constructs the chi.Router with OptiCore defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/sale-orders", params.SalesHandler.MountRoutes)
		r.Route("/purchase-orders", params.PurchasingHandler.MountRoutes)
		r.Route("/dispatches", params.DispatchHandler.MountRoutes)
		r.Route("/invoices", params.BillingHandler.MountRoutes)
		r.Route("/customers", params.BillingHandler.MountLedgerRoutes)
		r.Route("/expenses", params.ExpenseHandler.MountRoutes)
		r.Route("/reports", params.FinanceHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	})

	return r
}
