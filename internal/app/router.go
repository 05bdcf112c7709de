package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/assets"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/locks"
	"github.com/brightbooks-erp/brightbooks/internal/procurement"
	"github.com/brightbooks-erp/brightbooks/internal/sales"
	"github.com/brightbooks-erp/brightbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	LedgerHandler      *ledger.Handler
	LockHandler        *locks.Handler
	AccountsHandler    *accounts.Handler
	AssetsHandler      *assets.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with default middleware and routes.
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
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.LockHandler != nil {
			api.Route("/locks", params.LockHandler.MountRoutes)
		}
		if params.AccountsHandler != nil {
			api.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.AssetsHandler != nil {
			api.Route("/assets", params.AssetsHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/purchase-orders", params.ProcurementHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			api.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
