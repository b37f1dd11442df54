package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuftline-erp/tuftline-erp/internal/accounting/accounts"
	"github.com/tuftline-erp/tuftline-erp/internal/accounting/journals"
	"github.com/tuftline-erp/tuftline-erp/internal/expenses"
	"github.com/tuftline-erp/tuftline-erp/internal/inventory"
	"github.com/tuftline-erp/tuftline-erp/internal/masterdata/clients"
	"github.com/tuftline-erp/tuftline-erp/internal/masterdata/suppliers"
	"github.com/tuftline-erp/tuftline-erp/internal/orders"
	"github.com/tuftline-erp/tuftline-erp/internal/platform/httpx"
	"github.com/tuftline-erp/tuftline-erp/internal/procurement"
	"github.com/tuftline-erp/tuftline-erp/internal/production"
	"github.com/tuftline-erp/tuftline-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AccountsHandler    *accounts.Handler
	JournalsHandler    *journals.Handler
	InventoryHandler   *inventory.Handler
	OrdersHandler      *orders.Handler
	ProcurementHandler *procurement.Handler
	ProductionHandler  *production.Handler
	ExpensesHandler    *expenses.Handler
	ClientsHandler     *clients.Handler
	SuppliersHandler   *suppliers.Handler
	JobsHandler        *jobs.Handler
	Pool               *pgxpool.Pool
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/accounts", params.AccountsHandler.Routes)
		api.Route("/journal-entries", params.JournalsHandler.Routes)
		api.Route("/inventory/items", params.InventoryHandler.Routes)
		api.Route("/orders", params.OrdersHandler.Routes)
		api.Route("/purchase-orders", params.ProcurementHandler.Routes)
		api.Route("/production-jobs", params.ProductionHandler.Routes)
		api.Route("/expenses", params.ExpensesHandler.Routes)
		api.Route("/clients", params.ClientsHandler.Routes)
		api.Route("/suppliers", params.SuppliersHandler.Routes)
		if params.JobsHandler != nil {
			api.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
