package expense

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opticore-erp/opticore-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the expense module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs expense handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/summary", h.handleMonthlySummary)
}

type createRequest struct {
	Type        string  `json:"type" validate:"required,oneof=DIRECT INDIRECT"`
	Category    string  `json:"category" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	IncurredAt  string  `json:"incurredAt" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := httpx.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	input := CreateInput{
		Type:        Type(req.Type),
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
	}
	if req.IncurredAt != "" {
		incurredAt, _ := time.Parse("2006-01-02", req.IncurredAt)
		input.IncurredAt = incurredAt
	}

	e, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))

	var filter ListFilter
	if raw := r.URL.Query().Get("type"); raw != "" {
		expenseType, err := ParseType(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Type = expenseType
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = to.AddDate(0, 0, 1)
	}

	expenses, pagination, err := h.service.List(r.Context(), filter, page, perPage)
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": expenses, "pagination": pagination})
}

func (h *Handler) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	month, err := time.Parse("2006-01", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be YYYY-MM")
		return
	}
	summary, err := h.service.MonthlySummary(r.Context(), month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
