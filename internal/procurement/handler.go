package procurement

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/platform/httpx"
	"github.com/tuftline-erp/tuftline-erp/internal/shared"
)

// Handler wires HTTP endpoints for the purchase order lifecycle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes mounts the purchase order endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/send", h.Send)
	r.Post("/{id}/receive", h.Receive)
	r.Post("/{id}/close", h.Close)
}

type lineRequest struct {
	ItemID     int64           `json:"item_id" validate:"required"`
	OrderedQty decimal.Decimal `json:"ordered_qty" validate:"required"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

type createRequest struct {
	SupplierID int64         `json:"supplier_id" validate:"required"`
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{SupplierID: req.SupplierID}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ItemID: l.ItemID, OrderedQty: l.OrderedQty, UnitCost: l.UnitCost})
	}
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

type receiptLineRequest struct {
	LineID int64           `json:"line_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
}

type receiveRequest struct {
	Lines []receiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	id, err := parsePOID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ReceiveInput{
		POID:           id,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, ReceiptLine{LineID: l.LineID, Qty: l.Qty})
	}
	po, err := h.service.ReceiveGoods(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Send)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Close)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePOID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list purchase orders failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": list})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (PurchaseOrder, error)) {
	id, err := parsePOID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return
	}
	po, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrOverReceipt):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this receipt was already submitted")
	case errors.Is(err, inventory.ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrEmptyReceipt), errors.Is(err, ErrValidation),
		errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parsePOID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
