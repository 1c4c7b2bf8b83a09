package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/breadline/backoffice/internal/observability"
	"github.com/breadline/backoffice/internal/payroll"
	"github.com/breadline/backoffice/internal/platform/httpx"
	"github.com/breadline/backoffice/internal/production"
	"github.com/breadline/backoffice/internal/sales"
	"github.com/breadline/backoffice/internal/session"
	"github.com/breadline/backoffice/internal/stock"
	"github.com/breadline/backoffice/internal/writeoffs"
	"github.com/breadline/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Tokens            *TokenVerifier
	SessionManager    *session.Manager
	SalesHandler      *sales.Handler
	ProductionHandler *production.Handler
	PayrollHandler    *payroll.Handler
	StockHandler      *stock.Handler
	WriteoffsHandler  *writeoffs.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi router. Everything except /healthz and
// /metrics requires a bearer token and runs with a session.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config != nil && !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Tokens.Middleware)
		r.Use(SessionMiddleware(params.SessionManager, params.Logger))

		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.ProductionHandler != nil {
			r.Route("/production", params.ProductionHandler.MountRoutes)
		}
		if params.PayrollHandler != nil {
			r.Route("/payroll", params.PayrollHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.WriteoffsHandler != nil {
			r.Route("/writeoffs", params.WriteoffsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", r.URL.Path)
	})
	return r
}
