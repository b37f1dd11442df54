package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tuftline-erp/tuftline-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory items and movements.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes mounts the inventory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/reorder", h.ListBelowReorder)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/stock", h.Stock)
	r.Get("/{id}/movements", h.Movements)
	r.Post("/{id}/receive", h.Receive)
	r.Post("/{id}/consume", h.Consume)
	r.Post("/{id}/adjust", h.Adjust)
}

type createItemRequest struct {
	SKU          string          `json:"sku" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Type         string          `json:"type"`
	Unit         string          `json:"unit"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		SKU:          req.SKU,
		Name:         req.Name,
		Type:         req.Type,
		Unit:         req.Unit,
		ReorderPoint: req.ReorderPoint,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

type receiveRequest struct {
	Qty      decimal.Decimal `json:"qty" validate:"required"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Note     string          `json:"note"`
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	movement, err := h.service.Receive(r.Context(), ReceiveInput{
		ItemID:   id,
		Qty:      req.Qty,
		UnitCost: req.UnitCost,
		Note:     req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

type consumeRequest struct {
	Qty  decimal.Decimal `json:"qty" validate:"required"`
	Note string          `json:"note"`
}

func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req consumeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	movement, cost, err := h.service.Consume(r.Context(), ConsumeInput{
		ItemID: id,
		Qty:    req.Qty,
		Note:   req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"movement": movement, "cost": cost})
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta" validate:"required"`
	Note  string          `json:"note"`
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	movement, err := h.service.Adjust(r.Context(), AdjustInput{
		ItemID: id,
		Delta:  req.Delta,
		Note:   req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	snapshot, err := h.service.GetStockLevel(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.logger.Error("list items failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListBelowReorder(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListBelowReorder(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "inventory item not found")
	case errors.Is(err, ErrDuplicateSKU):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "sku already exists")
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseItemID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
