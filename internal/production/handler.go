package production

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
)

// Handler wires HTTP endpoints for the production job lifecycle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes mounts the production endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/bom", h.AddBOMLines)
	r.Post("/{id}/allocate", h.Allocate)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/quality-check", h.SubmitQC)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)
	r.Get("/{id}/consumptions", h.ListConsumptions)
	r.Post("/{id}/consumptions", h.RecordConsumption)
	r.Put("/consumptions/{consumptionID}", h.UpdateConsumption)
	r.Delete("/consumptions/{consumptionID}", h.DeleteConsumption)
}

type bomLineRequest struct {
	ItemID     int64           `json:"item_id" validate:"required"`
	PlannedQty decimal.Decimal `json:"planned_qty" validate:"required"`
	Note       string          `json:"note"`
}

type addBOMRequest struct {
	Lines []bomLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) AddBOMLines(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	var req addBOMRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]BOMLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, BOMLineInput{ItemID: l.ItemID, PlannedQty: l.PlannedQty, Note: l.Note})
	}
	job, err := h.service.AddBOMLines(r.Context(), id, lines)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

type consumptionRequest struct {
	ItemID int64           `json:"item_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty" validate:"required"`
}

func (h *Handler) RecordConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	var req consumptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	consumption, err := h.service.RecordConsumption(r.Context(), ConsumptionInput{
		JobID:  id,
		ItemID: req.ItemID,
		Qty:    req.Qty,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, consumption)
}

type updateConsumptionRequest struct {
	Qty decimal.Decimal `json:"qty" validate:"required"`
}

func (h *Handler) UpdateConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "consumptionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid consumption id")
		return
	}
	var req updateConsumptionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	consumption, err := h.service.UpdateConsumption(r.Context(), id, req.Qty)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, consumption)
}

func (h *Handler) DeleteConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "consumptionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid consumption id")
		return
	}
	if err := h.service.DeleteConsumption(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.AllocateMaterials)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Start)
}

func (h *Handler) SubmitQC(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.SubmitQualityCheck)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Cancel)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	job, finished, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"job": job, "finished_product": finished})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list production jobs failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) ListConsumptions(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	consumptions, err := h.service.ListConsumptions(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consumptions": consumptions})
}

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (Job, error)) {
	id, err := parseJobID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid job id")
		return
	}
	job, err := fn(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "production job not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrJobClosed), errors.Is(err, ErrNoBOMLines):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, inventory.ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseJobID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
