package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	accshared "github.com/tuftline-erp/tuftline-erp/internal/accounting/shared"
	"github.com/tuftline-erp/tuftline-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for journal entries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes mounts the journal endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/void", h.Void)
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Side      string          `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Memo      string          `json:"memo"`
}

type createEntryRequest struct {
	Type        string        `json:"type" validate:"required"`
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	Reference   string        `json:"reference"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
	Post        bool          `json:"post"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateEntryInput{
		Type:        EntryType(req.Type),
		Date:        req.Date,
		Description: req.Description,
		Reference:   req.Reference,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			AccountID: l.AccountID,
			Side:      LineSide(l.Side),
			Amount:    l.Amount,
			Memo:      l.Memo,
		})
	}
	var entry JournalEntry
	var err error
	if req.Post {
		entry, err = h.service.CreateAndPost(r.Context(), input)
	} else {
		entry, err = h.service.CreateEntry(r.Context(), input)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.Post(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.Void(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if kind := r.URL.Query().Get("source_kind"); kind != "" {
		sourceID, _ := strconv.ParseInt(r.URL.Query().Get("source_id"), 10, 64)
		entries, err := h.service.ListBySource(r.Context(), SourceRef{Kind: SourceKind(kind), ID: sourceID})
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}
	entries, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list journal entries failed", "error", err)
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accshared.ErrJournalNotFound), errors.Is(err, accshared.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, accshared.ErrTooFewLines),
		errors.Is(err, accshared.ErrNonPositiveAmount),
		errors.Is(err, accshared.ErrUnbalanced),
		errors.Is(err, accshared.ErrAccountInactive):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, accshared.ErrAlreadyPosted),
		errors.Is(err, accshared.ErrAlreadyVoid),
		errors.Is(err, accshared.ErrInvalidVoidTarget):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
