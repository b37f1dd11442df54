package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the order lifecycle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes mounts the order endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/items", h.UpdateItems)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/payments", h.RecordPayment)
	r.Get("/{id}/payments", h.ListPayments)
	r.Post("/{id}/start-production", h.StartProduction)
	r.Post("/{id}/mark-ready", h.MarkReady)
	r.Post("/{id}/dispatch", h.Dispatch)
	r.Post("/{id}/close", h.Close)
	r.Post("/{id}/archive", h.Archive)
}

type itemRequest struct {
	Description        string          `json:"description" validate:"required"`
	Qty                decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	RequiresProduction bool            `json:"requires_production"`
}

type createOrderRequest struct {
	ClientID       int64           `json:"client_id" validate:"required"`
	DepositPercent decimal.Decimal `json:"deposit_percent"`
	Items          []itemRequest   `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		ClientID:       req.ClientID,
		DepositPercent: req.DepositPercent,
		Items:          toItemInputs(req.Items),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

type updateItemsRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req updateItemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.UpdateItems(r.Context(), id, toItemInputs(req.Items))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method"`
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		OrderID: id,
		Amount:  req.Amount,
		Method:  req.Method,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Submit)
}

func (h *Handler) StartProduction(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.StartProduction)
}

func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.MarkReady)
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Dispatch)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Close)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Archive)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list orders failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (Order, error)) {
	id, err := parseOrderID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	order, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "order not found")
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDepositNotMet),
		errors.Is(err, ErrJobsNotDone),
		errors.Is(err, ErrItemsLocked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, ItemInput{
			Description:        it.Description,
			Qty:                it.Qty,
			UnitPrice:          it.UnitPrice,
			RequiresProduction: it.RequiresProduction,
		})
	}
	return out
}

func parseOrderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
