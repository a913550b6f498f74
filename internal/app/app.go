package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/sale"
	"github.com/xenking/sales-pricing/internal/handler"
	"github.com/xenking/sales-pricing/internal/ratecache"
	"github.com/xenking/sales-pricing/internal/repository"
	"github.com/xenking/sales-pricing/pkg/health"
	"github.com/xenking/sales-pricing/pkg/httpmiddleware"
)

const serviceName = "sales-pricing"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	model, err := pricing.ParseModel(cfg.Pricing.DiscountModel)
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("discount_model", string(model)),
	)
	if model == pricing.ModelFlat {
		lg.Warn("Flat discount model is deprecated; totals differ from the sequential rule")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Readiness, "postgres", health.DatabasePing(pool), health.WithTimeout(5*time.Second))
	healthSvc.Add(health.Readiness, "postgres_pool", health.PoolSaturation(pool, 0.95), health.WithThresholds(5, 1))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCount(10000))

	// Optional Redis: rate table cache and shared rate limit counters.
	var (
		rateCache discount.Cache = discount.NopCache{}
		limitBy   limiter.Store
	)
	if cfg.RedisURL != "" {
		rdb, err := newRedis(ctx, lg, m, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		rateCache = ratecache.New(rdb, cfg.RateCache.TTL)
		// The Redis store loads its scripts eagerly; without Redis each
		// replica counts on its own.
		limitBy, err = limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
			Prefix: "sales:ratelimit",
		})
		if err != nil {
			lg.Warn("Rate limit store falls back to memory", zap.Error(err))
			limitBy = nil
		}
		healthSvc.Add(health.Readiness, "redis", health.RedisPing(rdb), health.WithThresholds(3, 2))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	customerRepo := repository.NewCustomerRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	saleRepo := repository.NewSaleRepository(pool)

	// Domain services.
	discountService := discount.NewService(discountRepo, rateCache)
	saleService, err := sale.NewService(
		customerRepo, paymentRepo, productRepo, discountService, saleRepo,
		pricing.NewEngine(model),
		m.MeterProvider().Meter(serviceName),
	)
	if err != nil {
		return errors.Wrap(err, "create sale service")
	}

	h := handler.New(handler.Deps{
		Customers: customerRepo,
		Products:  productRepo,
		Methods:   paymentRepo,
		Discounts: discountService,
		Sales:     saleService,
	})

	// Router: banner, health endpoints and the API on one server.
	mux := chi.NewRouter()
	mux.Get("/", handler.Banner(serviceName, model))
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/api", h.Routes())
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, routeFinder, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Store:  limitBy,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newRedis connects to Redis and instruments the client. An unreachable
// server at startup is logged, not fatal.
func newRedis(ctx context.Context, lg *zap.Logger, m *app.Telemetry, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)

	if err := redisotel.InstrumentTracing(rdb, redisotel.WithTracerProvider(m.TracerProvider())); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(m.MeterProvider())); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "instrument redis metrics")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		lg.Warn("Redis unreachable at startup", zap.String("addr", opts.Addr), zap.Error(err))
	}
	return rdb, nil
}
