package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
	"github.com/opticore-erp/opticore-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the handler.
type RepositoryPort interface {
	GetVariant(ctx context.Context, id int64) (Variant, error)
	ListVariants(ctx context.Context, filter VariantFilter) ([]Variant, int, error)
}

// Handler exposes read-only catalog lookups.
type Handler struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/variants", h.handleListVariants)
	r.Get("/variants/{id}", h.handleGetVariant)
}

func (h *Handler) handleListVariants(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	filter := VariantFilter{
		Search: r.URL.Query().Get("search"),
		RxOnly: r.URL.Query().Get("rx") == "true",
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}

	variants, total, err := h.repo.ListVariants(r.Context(), filter)
	if err != nil {
		h.logger.Error("list variants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       variants,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGetVariant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	variant, err := h.repo.GetVariant(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, variant)
}
