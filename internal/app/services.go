package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/breadline/backoffice/internal/observability"
	"github.com/breadline/backoffice/internal/payroll"
	"github.com/breadline/backoffice/internal/platform/kv"
	"github.com/breadline/backoffice/internal/platform/lock"
	"github.com/breadline/backoffice/internal/production"
	"github.com/breadline/backoffice/internal/sales"
	"github.com/breadline/backoffice/internal/session"
	"github.com/breadline/backoffice/internal/stock"
	"github.com/breadline/backoffice/internal/upstream"
	"github.com/breadline/backoffice/internal/writeoffs"
)

const (
	keyPrefix     = "backoffice"
	sessionCookie = "backoffice_session"
	lockTTL       = 10 * time.Second
)

// Dependencies are the process-wide connections services are built on.
type Dependencies struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// Services is the wired service graph shared by the HTTP server and the worker.
type Services struct {
	Store      *kv.RedisStore
	Sessions   *session.Manager
	Upstream   *upstream.Client
	Sales      *sales.Service
	Production *production.Service
	Stock      *stock.Service
	Payroll    *payroll.Service
	Writeoffs  *writeoffs.Service
}

// NewServices wires every domain service. Stock changes invalidate cached
// production plans.
func NewServices(deps Dependencies) *Services {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var observer upstream.Observer
	var cacheObserver sales.CacheObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
		cacheObserver = deps.Metrics
	}

	store := kv.NewRedisStore(deps.Redis, keyPrefix)
	client := upstream.NewClient(upstream.Config{
		BaseURL:  cfg.UpstreamURL,
		Token:    cfg.UpstreamToken,
		Timeout:  cfg.UpstreamTimeout,
		Retry:    cfg.RetryPolicy(),
		Logger:   logger.With(slog.String("component", "upstream")),
		Observer: observer,
	})

	stockService := stock.NewService(stock.NewRepository(deps.Pool), logger.With(slog.String("component", "stock")))

	salesService := sales.NewService(sales.ServiceConfig{
		Backend: sales.UpstreamBackend{Client: client},
		Cache:   kv.NewCache(store, "sales"),
		Days:    sales.NewDayCache(store, store, cfg.ReceiptCacheMaxAge, logger),
		Policy: sales.CachePolicy{
			OpenTTL:   cfg.SalesCacheTTL,
			ClosedTTL: cfg.SalesClosedCacheTTL,
			PointsTTL: cfg.PointsCacheTTL,
		},
		MaxDays:  cfg.FanoutMaxDays,
		Products: stockService,
		Observer: cacheObserver,
		Logger:   logger.With(slog.String("component", "sales")),
		// Shared loads get the same budget as a request.
		LoadTimeout: cfg.AppRequestTimeout,
	})

	productionService := production.NewService(production.ServiceConfig{
		History:      salesService,
		Stocks:       stockService,
		Store:        store,
		Cache:        kv.NewCache(store, "production"),
		PlanTTL:      cfg.PlanCacheTTL,
		OverridesTTL: cfg.SessionTTL,
		Locker:       lock.New(deps.Redis, lockTTL),
		Logger:       logger.With(slog.String("component", "production")),
	})
	stockService.OnChange(func(ctx context.Context, _ stock.Movement) error {
		return productionService.Invalidate(ctx)
	})

	return &Services{
		Store:      store,
		Sessions:   session.NewManager(store, sessionCookie, cfg.SessionTTL, cfg.IsProduction()),
		Upstream:   client,
		Sales:      salesService,
		Production: productionService,
		Stock:      stockService,
		Payroll:    payroll.NewService(payroll.NewRepository(deps.Pool), logger.With(slog.String("component", "payroll"))),
		Writeoffs:  writeoffs.NewService(writeoffs.NewRepository(deps.Pool), logger.With(slog.String("component", "writeoffs"))),
	}
}
